package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "horizon/internal/errors"
	"horizon/internal/services"
)

type mockRefreshService struct {
	drainFn            func(ctx context.Context, batchSize int) (*services.DrainResult, error)
	refreshHouseholdFn func(ctx context.Context, householdID string) error
}

var _ services.RefreshServicer = (*mockRefreshService)(nil)

func (m *mockRefreshService) Drain(ctx context.Context, batchSize int) (*services.DrainResult, error) {
	if m.drainFn != nil {
		return m.drainFn(ctx, batchSize)
	}
	return &services.DrainResult{}, nil
}

func (m *mockRefreshService) RefreshHousehold(ctx context.Context, householdID string) error {
	if m.refreshHouseholdFn != nil {
		return m.refreshHouseholdFn(ctx, householdID)
	}
	return nil
}

func setupPipelineRouter(handler *PipelineHandler) *gin.Engine {
	r := gin.New()
	r.POST("/pipeline/drain", handler.Drain)
	r.POST("/pipeline/purge", handler.Purge)
	return r
}

func TestPipelineHandler_Drain(t *testing.T) {
	t.Run("uses the configured default batch size", func(t *testing.T) {
		var gotBatch int
		refreshSvc := &mockRefreshService{
			drainFn: func(_ context.Context, batchSize int) (*services.DrainResult, error) {
				gotBatch = batchSize
				return &services.DrainResult{EventsProcessed: 3, HouseholdsRefreshed: 2}, nil
			},
		}
		handler := NewPipelineHandler(refreshSvc, &mockEventService{}, 50, 30*24*time.Hour)
		r := setupPipelineRouter(handler)

		rec := doRequest(r, "POST", "/pipeline/drain", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotBatch != 50 {
			t.Errorf("expected default batch size 50, got %d", gotBatch)
		}
		result := parseJSON(t, rec)
		if result["events_processed"] != float64(3) {
			t.Errorf("expected events_processed 3, got %v", result["events_processed"])
		}
	})

	t.Run("honors an explicit batch size", func(t *testing.T) {
		var gotBatch int
		refreshSvc := &mockRefreshService{
			drainFn: func(_ context.Context, batchSize int) (*services.DrainResult, error) {
				gotBatch = batchSize
				return &services.DrainResult{}, nil
			},
		}
		handler := NewPipelineHandler(refreshSvc, &mockEventService{}, 50, 30*24*time.Hour)
		r := setupPipelineRouter(handler)

		rec := doRequest(r, "POST", "/pipeline/drain", `{"batch_size":7}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotBatch != 7 {
			t.Errorf("expected batch size 7, got %d", gotBatch)
		}
	})

	t.Run("rejects an out-of-range batch size", func(t *testing.T) {
		handler := NewPipelineHandler(&mockRefreshService{}, &mockEventService{}, 50, 30*24*time.Hour)
		r := setupPipelineRouter(handler)

		rec := doRequest(r, "POST", "/pipeline/drain", `{"batch_size":5000}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("propagates drain errors", func(t *testing.T) {
		refreshSvc := &mockRefreshService{
			drainFn: func(context.Context, int) (*services.DrainResult, error) {
				return nil, apperrors.ErrInternalServer
			},
		}
		handler := NewPipelineHandler(refreshSvc, &mockEventService{}, 50, 30*24*time.Hour)
		r := setupPipelineRouter(handler)

		rec := doRequest(r, "POST", "/pipeline/drain", "")

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestPipelineHandler_Purge(t *testing.T) {
	t.Run("purges with the configured retention", func(t *testing.T) {
		var gotRetention time.Duration
		eventSvc := &mockEventService{
			purgeTerminalFn: func(olderThan time.Duration) (int64, error) {
				gotRetention = olderThan
				return 4, nil
			},
		}
		handler := NewPipelineHandler(&mockRefreshService{}, eventSvc, 50, 30*24*time.Hour)
		r := setupPipelineRouter(handler)

		rec := doRequest(r, "POST", "/pipeline/purge", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotRetention != 30*24*time.Hour {
			t.Errorf("expected retention 720h, got %v", gotRetention)
		}
		result := parseJSON(t, rec)
		if result["deleted"] != float64(4) {
			t.Errorf("expected deleted 4, got %v", result["deleted"])
		}
	})
}
