// README: Reporting service: delivered totals, activity summaries, and the
// admin exports.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sharetray/internal/modules/donation"
	"sharetray/internal/modules/recipient"
	"sharetray/internal/types"
)

type DonationSource interface {
	Get(ctx context.Context, id types.ID) (*donation.Donation, error)
	DeliveredStats(ctx context.Context) (donation.DeliveredStats, error)
	ListDeliveredTransactions(ctx context.Context) ([]*donation.Transaction, error)
}

type RecipientSource interface {
	Get(ctx context.Context, id types.ID) (*recipient.Recipient, error)
}

type ActivitySource interface {
	SummarizeSince(ctx context.Context, since time.Time) (map[string]int, error)
}

type CriteriaSource interface {
	All() map[types.Role][]string
}

type Service struct {
	donations  DonationSource
	recipients RecipientSource
	activity   ActivitySource
	criteria   CriteriaSource
}

func NewService(donations DonationSource, recipients RecipientSource, activity ActivitySource, criteria CriteriaSource) *Service {
	return &Service{donations: donations, recipients: recipients, activity: activity, criteria: criteria}
}

type Summary struct {
	DeliveredCount int     `json:"delivered_count"`
	TotalWeightKg  float64 `json:"total_weight_kg"`
}

func (s *Service) DeliveredSummary(ctx context.Context) (Summary, error) {
	stats, err := s.donations.DeliveredStats(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summary{DeliveredCount: stats.Count, TotalWeightKg: stats.TotalWeightKg}, nil
}

// ActivitySummary counts API actions since midnight UTC.
func (s *Service) ActivitySummary(ctx context.Context) (map[string]int, error) {
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return s.activity.SummarizeSince(ctx, midnight)
}

// transactionRow is one export line, donation items and recipient names
// resolved.
type transactionRow struct {
	DonationID  string
	Items       string
	Recipient   string
	WeightKg    float64
	MatchedAt   time.Time
	PickedUpAt  *time.Time
	DeliveredAt *time.Time
}

func (s *Service) deliveredRows(ctx context.Context) ([]transactionRow, error) {
	transactions, err := s.donations.ListDeliveredTransactions(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]transactionRow, 0, len(transactions))
	for _, t := range transactions {
		row := transactionRow{
			DonationID:  string(t.DonationID),
			WeightKg:    t.WeightKg,
			MatchedAt:   t.MatchedAt,
			PickedUpAt:  t.PickedUpAt,
			DeliveredAt: t.DeliveredAt,
		}
		if d, err := s.donations.Get(ctx, t.DonationID); err == nil {
			row.Items = itemsLabel(d.Items)
		}
		if r, err := s.recipients.Get(ctx, t.RecipientID); err == nil {
			row.Recipient = r.Name
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// itemsLabel flattens a donation's items into one readable cell,
// "Cooked Rice x10; Bread x2".
func itemsLabel(items []donation.FoodItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%s x%d", it.Name, it.Quantity)
	}
	return strings.Join(parts, "; ")
}
