package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/memegrid/memegrid-api/internal/domain/credit"
)

// Sweeper periodically expires due credit grants. The sweep itself is
// idempotent, so overlapping or missed runs are harmless.
type Sweeper struct {
	cron     *cron.Cron
	credits  *credit.Service
	schedule string
}

// NewSweeper creates the expiry sweeper with a cron schedule ("@hourly",
// "*/10 * * * *", ...)
func NewSweeper(credits *credit.Service, schedule string) *Sweeper {
	return &Sweeper{
		cron:     cron.New(),
		credits:  credits,
		schedule: schedule,
	}
}

// Start registers the job and starts the scheduler
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Str("schedule", s.schedule).Msg("credit expiry sweeper started")
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("credit expiry sweeper stopped")
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	swept, err := s.credits.SweepExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("credit sweep failed")
		return
	}
	if swept > 0 {
		log.Info().Int64("swept", swept).Dur("took", time.Since(start)).Msg("credit sweep expired grants")
	}
}
