// README: Google Maps drive-time estimates for planned pickup routes.
package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"sharetray/internal/types"
)

// RouteService handles interactions with the Google Maps Directions API.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a new RouteService with the given API key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// EstimateDriveSecs returns the driving time in seconds from origin through
// every stop in order. Stops before the last become waypoints.
func (s *RouteService) EstimateDriveSecs(ctx context.Context, origin types.Point, stops []types.Point) (int, error) {
	if len(stops) == 0 {
		return 0, fmt.Errorf("no stops to estimate")
	}

	last := stops[len(stops)-1]
	r := &maps.DirectionsRequest{
		Origin:      formatPoint(origin),
		Destination: formatPoint(last),
		Mode:        maps.TravelModeDriving,
		Region:      "PH", // Bias results to the Philippines
	}
	for _, stop := range stops[:len(stops)-1] {
		r.Waypoints = append(r.Waypoints, formatPoint(stop))
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, fmt.Errorf("no route found")
	}

	total := 0
	for _, leg := range routes[0].Legs {
		total += int(leg.Duration.Seconds())
	}
	return total, nil
}

func formatPoint(p types.Point) string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}
