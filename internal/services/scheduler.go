package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"horizon/internal/logger"
)

// Scheduler owns the pipeline's background jobs: a continuous drain of the
// event queue and a nightly purge of terminal events.
type Scheduler struct {
	cron    *cron.Cron
	refresh RefreshServicer
	events  EventServicer

	drainInterval  time.Duration
	drainBatchSize int
	eventRetention time.Duration
}

// NewScheduler creates a Scheduler. drainInterval and drainBatchSize bound
// the continuous drain; eventRetention bounds the nightly purge.
func NewScheduler(refresh RefreshServicer, events EventServicer, drainInterval time.Duration, drainBatchSize int, eventRetention time.Duration) *Scheduler {
	return &Scheduler{
		cron:           cron.New(),
		refresh:        refresh,
		events:         events,
		drainInterval:  drainInterval,
		drainBatchSize: drainBatchSize,
		eventRetention: eventRetention,
	}
}

// Start registers the jobs and runs the schedule until Stop is called.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.drainInterval), s.drainOnce); err != nil {
		return fmt.Errorf("failed to schedule drain job: %w", err)
	}
	if _, err := s.cron.AddFunc("@daily", s.purgeOnce); err != nil {
		return fmt.Errorf("failed to schedule purge job: %w", err)
	}
	s.cron.Start()
	logger.Get().Infow("Pipeline schedule started",
		"drain_interval", s.drainInterval.String(),
		"drain_batch_size", s.drainBatchSize)
	return nil
}

// Stop halts the schedule and waits for any running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) drainOnce() {
	result, err := s.refresh.Drain(context.Background(), s.drainBatchSize)
	if err != nil {
		logger.Get().Errorw("Scheduled drain failed", "error", err)
		return
	}
	if result.EventsProcessed > 0 || result.EventsFailed > 0 {
		logger.Get().Infow("Scheduled drain completed",
			"events_processed", result.EventsProcessed,
			"events_failed", result.EventsFailed,
			"households_refreshed", result.HouseholdsRefreshed)
	}
}

func (s *Scheduler) purgeOnce() {
	deleted, err := s.events.PurgeTerminal(s.eventRetention)
	if err != nil {
		logger.Get().Errorw("Scheduled purge failed", "error", err)
		return
	}
	if deleted > 0 {
		logger.Get().Infow("Purged terminal events", "deleted", deleted)
	}
}
