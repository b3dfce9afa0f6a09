// Package sweeper periodically tidies state that reads already treat as
// expired: broadcasts past their expiry and stale pairing codes.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"carevoice-backend/config"
	"carevoice-backend/internal/metrics"
	"carevoice-backend/internal/orgtime"
)

// PairingGrace keeps expired codes around long enough for a late
// redemption to be told the code expired rather than that it is unknown.
const PairingGrace = 24 * time.Hour

// Store is the part of the entity store the sweeper writes.
type Store interface {
	DeactivateExpiredBroadcasts(ctx context.Context, now time.Time) (int64, error)
	ClearExpiredPairingCodes(ctx context.Context, before time.Time) (int64, error)
}

// Service runs the sweep on a timer.
type Service struct {
	cfg   *config.SweeperConfig
	store Store
	clock orgtime.Clock
	log   *zap.Logger
}

func NewService(cfg *config.SweeperConfig, s Store, clock orgtime.Clock, log *zap.Logger) *Service {
	return &Service{cfg: cfg, store: s, clock: clock, log: log}
}

// Run sweeps once immediately and then every configured interval until ctx
// is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("sweeper is disabled, not starting")
		return
	}
	s.log.Info("starting sweeper", zap.Duration("interval", s.cfg.Interval))

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper shutting down")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// SweepOnce performs a single pass. Failures are logged and left for the
// next pass.
func (s *Service) SweepOnce(ctx context.Context) {
	now := s.clock.Now().UTC()

	n, err := s.store.DeactivateExpiredBroadcasts(ctx, now)
	if err != nil {
		s.log.Error("deactivate expired broadcasts", zap.Error(err))
	} else if n > 0 {
		metrics.SweeperRuns.WithLabelValues("broadcasts").Add(float64(n))
		s.log.Info("deactivated expired broadcasts", zap.Int64("count", n))
	}

	n, err = s.store.ClearExpiredPairingCodes(ctx, now.Add(-PairingGrace))
	if err != nil {
		s.log.Error("clear expired pairing codes", zap.Error(err))
	} else if n > 0 {
		metrics.SweeperRuns.WithLabelValues("pairing_codes").Add(float64(n))
		s.log.Info("cleared expired pairing codes", zap.Int64("count", n))
	}
}
