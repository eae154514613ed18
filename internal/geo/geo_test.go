package geo

import (
	"math"
	"testing"

	"sharetray/internal/types"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lng1      float64
		lat2      float64
		lng2      float64
		wantKm    float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: 14.602, lng1: 121.0015,
			lat2: 14.602, lng2: 121.0015,
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name: "neighbouring barangays (~0.5km)",
			lat1: 14.602, lng1: 121.0015,
			lat2: 14.605, lng2: 121.005,
			wantKm:    0.5,
			tolerance: 0.2,
		},
		{
			name: "Manila to Quezon City (~10km)",
			lat1: 14.5995, lng1: 120.9842,
			lat2: 14.6760, lng2: 121.0437,
			wantKm:    10.6,
			tolerance: 1.0,
		},
		{
			name: "New York to Los Angeles (~3944km)",
			lat1: 40.7128, lng1: -74.0060,
			lat2: 34.0522, lng2: -118.2437,
			wantKm:    3944,
			tolerance: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("HaversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	d1 := HaversineKm(14.0, 121.0, 15.0, 122.0)
	d2 := HaversineKm(15.0, 122.0, 14.0, 121.0)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestDistanceKm_MatchesScalarForm(t *testing.T) {
	a := types.Point{Lng: 121.0015, Lat: 14.602}
	b := types.Point{Lng: 121.005, Lat: 14.605}
	if got, want := DistanceKm(a, b), HaversineKm(a.Lat, a.Lng, b.Lat, b.Lng); got != want {
		t.Errorf("DistanceKm = %f, want %f", got, want)
	}
}

func TestNearestIndex(t *testing.T) {
	from := types.Point{Lng: 121.002, Lat: 14.603}
	candidates := []types.Point{
		{Lng: 121.005, Lat: 14.605},
		{Lng: 121.001, Lat: 14.601},
		{Lng: 121.050, Lat: 14.650},
	}
	if got := NearestIndex(from, candidates); got != 1 {
		t.Errorf("NearestIndex = %d, want 1", got)
	}
}

func TestNearestIndex_Empty(t *testing.T) {
	if got := NearestIndex(types.Point{}, nil); got != -1 {
		t.Errorf("NearestIndex on empty slice = %d, want -1", got)
	}
}

func TestSortByDistance(t *testing.T) {
	type stop struct {
		id   string
		dist float64
	}
	stops := []stop{
		{id: "c", dist: 5.0},
		{id: "a", dist: 1.0},
		{id: "b", dist: 3.0},
	}

	SortByDistance(stops, func(s stop) float64 { return s.dist })

	if stops[0].id != "a" || stops[1].id != "b" || stops[2].id != "c" {
		t.Errorf("unexpected sort order: %v", stops)
	}
}

func TestSortByDistance_Empty(t *testing.T) {
	var stops []types.Point
	SortByDistance(stops, func(p types.Point) float64 { return p.Lat })
}

func TestSortByDistance_Single(t *testing.T) {
	stops := []types.Point{{Lng: 121.0, Lat: 14.6}}
	SortByDistance(stops, func(p types.Point) float64 { return p.Lat })
	if stops[0].Lng != 121.0 {
		t.Errorf("single element sort failed")
	}
}
