// README: Matching service pairs open donations with the closest recipient
// that still has capacity.
package matching

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"

	"sharetray/internal/config"
	"sharetray/internal/geo"
	"sharetray/internal/modules/donation"
	"sharetray/internal/modules/recipient"
	"sharetray/internal/types"
)

var ErrAlreadyRunning = errors.New("matching run already in progress")

const (
	runLockKey = "sharetray:matching:run"
	runLockTTL = 30 * time.Second
)

type DonationMatcher interface {
	ListOpen(ctx context.Context) ([]*donation.Donation, error)
	Match(ctx context.Context, cmd donation.MatchCommand) error
}

type RecipientSource interface {
	List(ctx context.Context) ([]*recipient.Recipient, error)
}

type Service struct {
	donations  DonationMatcher
	recipients RecipientSource
	locker     *redislock.Client
	cfg        config.MatchingConfig
	log        *logrus.Logger
}

// NewService wires the matcher. locker may be nil, in which case runs are not
// serialized across instances.
func NewService(donations DonationMatcher, recipients RecipientSource, locker *redislock.Client, cfg config.MatchingConfig, log *logrus.Logger) *Service {
	return &Service{donations: donations, recipients: recipients, locker: locker, cfg: cfg, log: log}
}

// Run performs one greedy pass: donations oldest first, each assigned to the
// nearest recipient within radiusKm whose remaining capacity covers its
// weight. Capacity consumed by earlier assignments in the same run counts. A
// non-positive radius falls back to the configured default.
func (s *Service) Run(ctx context.Context, radiusKm float64) ([]Assignment, error) {
	if radiusKm <= 0 {
		radiusKm = s.cfg.RadiusKm
	}
	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, runLockKey, runLockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrAlreadyRunning
		}
		if err != nil {
			return nil, err
		}
		defer func() { _ = lock.Release(ctx) }()
	}

	open, err := s.donations.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	recipients, err := s.recipients.List(ctx)
	if err != nil {
		return nil, err
	}

	// Remaining capacity as seen by this run; decremented as assignments
	// land so one run never over-commits a recipient.
	remaining := make(map[types.ID]float64, len(recipients))
	for _, r := range recipients {
		remaining[r.ID] = r.CapacityKg
	}

	assignments := make([]Assignment, 0)
	for _, d := range open {
		if d.Location == nil {
			continue
		}
		best := -1
		bestDist := 0.0
		for i, r := range recipients {
			if r.Location == nil {
				continue
			}
			if remaining[r.ID] < d.TotalWeightKg {
				continue
			}
			dist := geo.DistanceKm(*d.Location, *r.Location)
			if dist > radiusKm {
				continue
			}
			if best == -1 || dist < bestDist {
				best = i
				bestDist = dist
			}
		}
		if best == -1 {
			continue
		}

		chosen := recipients[best]
		err := s.donations.Match(ctx, donation.MatchCommand{
			DonationID:  d.ID,
			RecipientID: chosen.ID,
		})
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"donation_id":  d.ID,
				"recipient_id": chosen.ID,
			}).Warn("match failed, skipping donation")
			continue
		}
		remaining[chosen.ID] -= d.TotalWeightKg
		assignments = append(assignments, Assignment{
			DonationID:  d.ID,
			RecipientID: chosen.ID,
			DistanceKm:  bestDist,
		})
	}

	if len(assignments) > 0 {
		s.log.WithField("count", len(assignments)).Info("matching run assigned donations")
	}
	return assignments, nil
}

// RunScheduler triggers matching runs on a fixed interval until ctx is done.
// A non-positive tick disables the scheduler.
func (s *Service) RunScheduler(ctx context.Context) {
	if s.cfg.TickSeconds <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(s.cfg.TickSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx, 0); err != nil {
				if errors.Is(err, ErrAlreadyRunning) {
					continue
				}
				s.log.WithError(err).Warn("scheduled matching run failed")
			}
		}
	}
}
