package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	apperrors "horizon/internal/errors"
	"horizon/internal/logger"
	"horizon/internal/models"
)

// householdLocks serializes refreshes per household. Acquisition waits up to
// the caller's context deadline, so a second drain touching the same
// household blocks briefly instead of corrupting a recompute in flight.
type householdLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newHouseholdLocks() *householdLocks {
	return &householdLocks{locks: make(map[string]chan struct{})}
}

func (l *householdLocks) acquire(ctx context.Context, householdID string) error {
	l.mu.Lock()
	ch, ok := l.locks[householdID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[householdID] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return apperrors.ErrRefreshContended
	}
}

func (l *householdLocks) release(householdID string) {
	l.mu.Lock()
	ch := l.locks[householdID]
	l.mu.Unlock()
	if ch != nil {
		<-ch
	}
}

// refreshService drains the event queue and runs the per-household refresh
// sequence: regenerate liability flows, recompute the live baseline, then
// re-evaluate goals.
type refreshService struct {
	db          *gorm.DB
	flows       FlowServicer
	events      EventServicer
	projections ProjectionServicer
	goals       GoalServicer

	locks       *householdLocks
	softTimeout time.Duration
	hardTimeout time.Duration
}

// NewRefreshService creates a new RefreshServicer. softTimeout bounds the
// wait for a contended household lease; hardTimeout bounds one household's
// whole refresh.
func NewRefreshService(
	db *gorm.DB,
	flows FlowServicer,
	events EventServicer,
	projections ProjectionServicer,
	goals GoalServicer,
	softTimeout, hardTimeout time.Duration,
) RefreshServicer {
	if softTimeout <= 0 {
		softTimeout = 15 * time.Second
	}
	if hardTimeout <= 0 {
		hardTimeout = 60 * time.Second
	}
	return &refreshService{
		db:          db,
		flows:       flows,
		events:      events,
		projections: projections,
		goals:       goals,
		locks:       newHouseholdLocks(),
		softTimeout: softTimeout,
		hardTimeout: hardTimeout,
	}
}

// Drain claims one batch of pending events, groups them by household, and
// refreshes each household once regardless of how many events it emitted.
// A failing household marks only its own events failed; the rest of the
// batch proceeds.
func (s *refreshService) Drain(ctx context.Context, batchSize int) (*DrainResult, error) {
	claimed, err := s.events.ClaimPending(batchSize)
	if err != nil {
		return nil, err
	}

	result := &DrainResult{Errors: []string{}}
	if len(claimed) == 0 {
		return result, nil
	}

	byHousehold := make(map[string][]string)
	for _, e := range claimed {
		byHousehold[e.HouseholdID] = append(byHousehold[e.HouseholdID], e.ID)
	}

	// Deterministic household order keeps concurrent drains from deadlocking
	// each other and makes logs reproducible.
	households := make([]string, 0, len(byHousehold))
	for id := range byHousehold {
		households = append(households, id)
	}
	sort.Strings(households)

	for _, householdID := range households {
		eventIDs := byHousehold[householdID]
		if err := s.RefreshHousehold(ctx, householdID); err != nil {
			logger.Get().Errorw("household refresh failed",
				"household_id", householdID,
				"events", len(eventIDs),
				"error", err,
			)
			if markErr := s.events.MarkFailed(eventIDs, err.Error()); markErr != nil {
				return nil, markErr
			}
			result.EventsFailed += len(eventIDs)
			result.Errors = append(result.Errors, fmt.Sprintf("household %s: %v", householdID, err))
			continue
		}
		if err := s.events.MarkProcessed(eventIDs); err != nil {
			return nil, err
		}
		result.EventsProcessed += len(eventIDs)
		result.HouseholdsRefreshed++
	}

	logger.Get().Infow("event queue drained",
		"claimed", len(claimed),
		"processed", result.EventsProcessed,
		"failed", result.EventsFailed,
		"households", result.HouseholdsRefreshed,
	)
	return result, nil
}

// RefreshHousehold runs one household's refresh under its lease. Lease
// acquisition waits at most the soft timeout; the refresh itself is cut off
// at the hard timeout.
func (s *refreshService) RefreshHousehold(ctx context.Context, householdID string) error {
	var household models.Household
	if err := s.db.First(&household, "id = ?", householdID).Error; err != nil {
		return apperrors.ErrHouseholdNotFound
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.softTimeout)
	err := s.locks.acquire(lockCtx, householdID)
	cancel()
	if err != nil {
		return err
	}
	defer s.locks.release(householdID)

	workCtx, cancelWork := context.WithTimeout(ctx, s.hardTimeout)
	defer cancelWork()

	steps := []struct {
		name string
		run  func() error
	}{
		{"regenerate_flows", func() error {
			_, err := s.flows.RegenerateLiabilityFlows(householdID)
			return err
		}},
		{"refresh_baseline", func() error {
			return s.projections.RefreshBaseline(householdID)
		}},
		{"evaluate_goals", func() error {
			_, err := s.goals.EvaluateHousehold(householdID)
			return err
		}},
	}

	start := time.Now()
	for _, step := range steps {
		if workCtx.Err() != nil {
			return apperrors.WithMessage(apperrors.ErrRefreshTimeout,
				fmt.Sprintf("refresh exceeded %s before %s", s.hardTimeout, step.name))
		}
		if err := step.run(); err != nil {
			return err
		}
	}

	logger.Get().Debugw("household refreshed",
		"household_id", householdID,
		"duration", time.Since(start),
	)
	return nil
}
