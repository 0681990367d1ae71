package services

import (
	"testing"
	"time"

	"horizon/internal/models"
	"horizon/internal/testutil"
)

func TestEventService(t *testing.T) {
	t.Run("emit_creates_pending_event", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewEventService(db)
		household := testutil.CreateTestHousehold(t, db)

		event, err := svc.Emit(household.ID, models.EventAccountsChanged, `{"account_id":"abc"}`)
		testutil.AssertNoError(t, err)

		if event.Status != models.EventStatusPending {
			t.Errorf("expected pending status, got %s", event.Status)
		}
		if event.ClaimID != nil {
			t.Error("fresh event must not carry a claim")
		}
	})

	t.Run("emit_rejects_unknown_type", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewEventService(db)
		household := testutil.CreateTestHousehold(t, db)

		_, err := svc.Emit(household.ID, models.EventType("portfolio_rotated"), "{}")
		testutil.AssertAppError(t, err, "INVALID_EVENT_TYPE")
	})

	t.Run("emit_requires_household", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewEventService(db)

		_, err := svc.Emit("", models.EventManualRefresh, "{}")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("claim_respects_batch_size", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewEventService(db)
		household := testutil.CreateTestHousehold(t, db)
		for i := 0; i < 3; i++ {
			testutil.EmitTestEvent(t, db, household.ID, models.EventFlowsChanged)
		}

		first, err := svc.ClaimPending(2)
		testutil.AssertNoError(t, err)
		if len(first) != 2 {
			t.Fatalf("expected 2 claimed, got %d", len(first))
		}

		second, err := svc.ClaimPending(10)
		testutil.AssertNoError(t, err)
		if len(second) != 1 {
			t.Fatalf("expected 1 remaining, got %d", len(second))
		}
	})

	t.Run("claimed_events_are_not_reclaimed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewEventService(db)
		household := testutil.CreateTestHousehold(t, db)
		testutil.EmitTestEvent(t, db, household.ID, models.EventManualRefresh)

		claimed, err := svc.ClaimPending(10)
		testutil.AssertNoError(t, err)
		if len(claimed) != 1 {
			t.Fatalf("expected 1 claimed, got %d", len(claimed))
		}

		again, err := svc.ClaimPending(10)
		testutil.AssertNoError(t, err)
		if len(again) != 0 {
			t.Fatalf("claimed event re-claimed: got %d", len(again))
		}
	})

	t.Run("mark_processed_stamps_terminal_state", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewEventService(db)
		household := testutil.CreateTestHousehold(t, db)
		event := testutil.EmitTestEvent(t, db, household.ID, models.EventTaxesChanged)

		_, err := svc.ClaimPending(1)
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, svc.MarkProcessed([]string{event.ID}))

		var got models.RealityChangeEvent
		testutil.AssertNoError(t, db.First(&got, "id = ?", event.ID).Error)
		if got.Status != models.EventStatusProcessed {
			t.Errorf("expected processed, got %s", got.Status)
		}
		if got.ProcessedAt == nil {
			t.Error("processed_at must be stamped")
		}
	})

	t.Run("terminal_transitions_are_one_way", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewEventService(db)
		household := testutil.CreateTestHousehold(t, db)
		event := testutil.EmitTestEvent(t, db, household.ID, models.EventFlowsChanged)

		testutil.AssertNoError(t, svc.MarkFailed([]string{event.ID}, "simulation blew up"))
		testutil.AssertNoError(t, svc.MarkProcessed([]string{event.ID}))

		var got models.RealityChangeEvent
		testutil.AssertNoError(t, db.First(&got, "id = ?", event.ID).Error)
		if got.Status != models.EventStatusFailed {
			t.Errorf("failed event must stay failed, got %s", got.Status)
		}
		if got.ErrorMessage != "simulation blew up" {
			t.Errorf("unexpected error message %q", got.ErrorMessage)
		}
	})

	t.Run("purge_deletes_only_old_terminal_events", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewEventService(db)
		household := testutil.CreateTestHousehold(t, db)

		pending := testutil.EmitTestEvent(t, db, household.ID, models.EventFlowsChanged)
		old := testutil.EmitTestEvent(t, db, household.ID, models.EventAccountsChanged)
		recent := testutil.EmitTestEvent(t, db, household.ID, models.EventAccountsChanged)

		testutil.AssertNoError(t, svc.MarkProcessed([]string{old.ID, recent.ID}))
		stale := time.Now().Add(-60 * 24 * time.Hour)
		testutil.AssertNoError(t, db.Model(&models.RealityChangeEvent{}).
			Where("id = ?", old.ID).
			Update("processed_at", stale).Error)

		deleted, err := svc.PurgeTerminal(30 * 24 * time.Hour)
		testutil.AssertNoError(t, err)
		if deleted != 1 {
			t.Fatalf("expected 1 purged, got %d", deleted)
		}

		var count int64
		testutil.AssertNoError(t, db.Model(&models.RealityChangeEvent{}).Count(&count).Error)
		if count != 2 {
			t.Fatalf("expected 2 surviving events, got %d", count)
		}
		var stillPending models.RealityChangeEvent
		testutil.AssertNoError(t, db.First(&stillPending, "id = ?", pending.ID).Error)
		if stillPending.Status != models.EventStatusPending {
			t.Errorf("pending event must survive purge, got %s", stillPending.Status)
		}
	})
}
