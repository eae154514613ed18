// README: Donation aggregate, lifecycle states, and audit record definitions.
package donation

import (
	"time"

	"sharetray/internal/types"
)

type State string

const (
	StatePosted          State = "posted"
	StateMatched         State = "matched"
	StatePickupScheduled State = "pickup_scheduled"
	StateInTransit       State = "in_transit"
	StateDelivered       State = "delivered"
	StateCancelled       State = "cancelled"
	StateExpired         State = "expired"
)

// Perishability tags how a food item must be handled between pickup and
// delivery.
type Perishability string

const (
	PerishFresh        Perishability = "fresh"
	PerishRefrigerated Perishability = "refrigerated"
	PerishStable       Perishability = "stable"
)

func ValidPerishability(p Perishability) bool {
	switch p {
	case PerishFresh, PerishRefrigerated, PerishStable:
		return true
	}
	return false
}

// FoodItem is one line of a posted donation. WeightKg is the weight of the
// whole line, not per unit. The JSON tags are the wire and storage shape:
// items travel as a JSON document in API bodies and in the donations table.
type FoodItem struct {
	Name          string        `json:"name"`
	Quantity      int           `json:"quantity"`
	WeightKg      float64       `json:"weight_kg"`
	Perishability Perishability `json:"perishability"`
}

type Donation struct {
	ID                 types.ID
	DonorID            types.ID
	Items              []FoodItem
	TotalWeightKg      float64
	PickupBy           *time.Time
	Location           *types.Point
	State              State
	MatchedRecipientID *types.ID
	PickupID           *types.ID
	PostedAt           time.Time
	UpdatedAt          time.Time
}

// AuditEntry is one row of a donation's immutable history. OldState is nil
// only on the entry written when the donation is first posted.
type AuditEntry struct {
	ID         int64
	DonationID types.ID
	OldState   *State
	NewState   State
	ActorID    *types.ID
	ActorRole  *types.Role
	Note       string
	CreatedAt  time.Time
}

// Transaction ties a matched donation to its recipient and accumulates the
// pickup and delivery timestamps as the donation moves.
type Transaction struct {
	ID          types.ID
	DonationID  types.ID
	RecipientID types.ID
	WeightKg    float64
	MatchedAt   time.Time
	PickedUpAt  *time.Time
	DeliveredAt *time.Time
}

// DeliveredStats aggregates completed donations for reporting.
type DeliveredStats struct {
	Count         int
	TotalWeightKg float64
}

// AllowedTransitions represents the donation state flow (diagram) as code.
var AllowedTransitions = map[State][]State{
	StatePosted:          {StateMatched, StateCancelled, StateExpired},
	StateMatched:         {StatePickupScheduled, StateCancelled, StateExpired},
	StatePickupScheduled: {StateInTransit, StateCancelled},
	StateInTransit:       {StateDelivered, StateCancelled},
}

func CanTransition(from, to State) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a state has no outgoing transitions.
func IsTerminal(s State) bool {
	_, ok := AllowedTransitions[s]
	return !ok
}

func ValidState(s State) bool {
	switch s {
	case StatePosted, StateMatched, StatePickupScheduled, StateInTransit,
		StateDelivered, StateCancelled, StateExpired:
		return true
	}
	return false
}
