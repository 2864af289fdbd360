package bag

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper runs the expiry sweep on a fixed interval. It is the in-process
// counterpart to the `sweep` CLI command; deployments using an external
// scheduler disable it by setting the interval to zero.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	log      zerolog.Logger
}

func NewSweeper(svc *Service, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{svc: svc, interval: interval, log: logger}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info().Msg("expiry sweeper disabled")
		return
	}

	s.log.Info().Dur("interval", s.interval).Msg("expiry sweeper started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("expiry sweeper stopped")
			return
		case now := <-ticker.C:
			if _, err := s.svc.SweepExpired(ctx, now); err != nil {
				s.log.Error().Err(err).Msg("expiry sweep failed")
			}
		}
	}
}
