// README: Recipient service: registration and capacity upkeep.
package recipient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sharetray/internal/types"
)

var (
	ErrNotFound   = errors.New("recipient not found")
	ErrBadRequest = errors.New("bad request")
)

type Repository interface {
	Create(ctx context.Context, r *Recipient) error
	Get(ctx context.Context, id types.ID) (*Recipient, error)
	List(ctx context.Context) ([]*Recipient, error)
	SetCapacity(ctx context.Context, id types.ID, capacityKg float64) error
}

type Service struct {
	store Repository
}

func NewService(store Repository) *Service {
	return &Service{store: store}
}

type CreateCommand struct {
	Name         string
	CapacityKg   float64
	Location     *types.Point
	ContactPhone *string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Recipient, error) {
	if cmd.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrBadRequest)
	}
	if cmd.CapacityKg < 0 {
		return nil, fmt.Errorf("%w: capacity must not be negative", ErrBadRequest)
	}
	r := &Recipient{
		ID:           types.NewID(),
		Name:         cmd.Name,
		CapacityKg:   cmd.CapacityKg,
		Location:     cmd.Location,
		ContactPhone: cmd.ContactPhone,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Recipient, error) {
	return s.store.Get(ctx, id)
}

// List returns all recipients ordered by id so callers iterate them in a
// stable order.
func (s *Service) List(ctx context.Context) ([]*Recipient, error) {
	return s.store.List(ctx)
}

func (s *Service) SetCapacity(ctx context.Context, id types.ID, capacityKg float64) error {
	if capacityKg < 0 {
		return fmt.Errorf("%w: capacity must not be negative", ErrBadRequest)
	}
	return s.store.SetCapacity(ctx, id, capacityKg)
}
