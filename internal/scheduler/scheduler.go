// Package scheduler runs the periodic dataset refresh.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"github.com/jmtatsch/virus-radar/internal/surveillance"
)

// Scheduler periodically re-pulls the surveillance datasets so the
// dashboard tracks upstream publication without restarts.
type Scheduler struct {
	scheduler *gocron.Scheduler
	loader    *surveillance.Loader
	interval  time.Duration
}

// New creates a Scheduler around a dataset loader.
func New(loader *surveillance.Loader, interval time.Duration) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		loader:    loader,
		interval:  interval,
	}
}

// Start schedules the refresh job and starts the underlying scheduler.
// A failed refresh keeps the previously loaded datasets and is retried
// on the next tick.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	_, err := s.scheduler.Every(interval).Do(func() {
		log.Info().Msg("scheduler: refreshing datasets")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := s.loader.Refresh(ctx); err != nil {
			log.Error().Err(err).Msg("scheduler: refresh failed, keeping previous datasets")
			return
		}
		log.Info().Msg("scheduler: refresh complete")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
