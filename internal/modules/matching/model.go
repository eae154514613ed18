// README: Matching result types.
package matching

import "sharetray/internal/types"

// Assignment is one donation-to-recipient pairing produced by a run.
type Assignment struct {
	DonationID  types.ID `json:"donation_id"`
	RecipientID types.ID `json:"recipient_id"`
	DistanceKm  float64  `json:"distance_km"`
}
