// README: Activity service records API actions and summarizes them for the
// admin dashboard.
package activity

import (
	"context"
	"time"
)

type Repository interface {
	Append(ctx context.Context, e *Event) error
	ListSince(ctx context.Context, since time.Time) ([]*Event, error)
}

type Service struct {
	store Repository
}

func NewService(store Repository) *Service {
	return &Service{store: store}
}

func (s *Service) Record(ctx context.Context, e Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return s.store.Append(ctx, &e)
}

func (s *Service) ListSince(ctx context.Context, since time.Time) ([]*Event, error) {
	return s.store.ListSince(ctx, since)
}

// SummarizeSince counts events per action from the given time.
func (s *Service) SummarizeSince(ctx context.Context, since time.Time) (map[string]int, error) {
	events, err := s.store.ListSince(ctx, since)
	if err != nil {
		return nil, err
	}
	summary := make(map[string]int, len(events))
	for _, e := range events {
		summary[e.Action]++
	}
	return summary, nil
}
