package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "horizon/internal/errors"
	"horizon/internal/models"
	"horizon/internal/services"
	"horizon/internal/validator"
)

// --- mock services ---

type mockEventService struct {
	emitFn          func(householdID string, eventType models.EventType, payload string) (*models.RealityChangeEvent, error)
	claimPendingFn  func(batchSize int) ([]models.RealityChangeEvent, error)
	markProcessedFn func(ids []string) error
	markFailedFn    func(ids []string, message string) error
	purgeTerminalFn func(olderThan time.Duration) (int64, error)
}

var _ services.EventServicer = (*mockEventService)(nil)

func (m *mockEventService) Emit(householdID string, eventType models.EventType, payload string) (*models.RealityChangeEvent, error) {
	if m.emitFn != nil {
		return m.emitFn(householdID, eventType, payload)
	}
	return &models.RealityChangeEvent{}, nil
}

func (m *mockEventService) ClaimPending(batchSize int) ([]models.RealityChangeEvent, error) {
	if m.claimPendingFn != nil {
		return m.claimPendingFn(batchSize)
	}
	return nil, nil
}

func (m *mockEventService) MarkProcessed(ids []string) error {
	if m.markProcessedFn != nil {
		return m.markProcessedFn(ids)
	}
	return nil
}

func (m *mockEventService) MarkFailed(ids []string, message string) error {
	if m.markFailedFn != nil {
		return m.markFailedFn(ids, message)
	}
	return nil
}

func (m *mockEventService) PurgeTerminal(olderThan time.Duration) (int64, error) {
	if m.purgeTerminalFn != nil {
		return m.purgeTerminalFn(olderThan)
	}
	return 0, nil
}

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func setupEventRouter(handler *EventHandler) *gin.Engine {
	r := gin.New()
	r.POST("/events", handler.EmitEvent)
	return r
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

// --- tests ---

func TestEventHandler_EmitEvent(t *testing.T) {
	const householdID = "0192b1c4-0000-7000-8000-000000000001"

	t.Run("returns 202 with the pending event", func(t *testing.T) {
		eventSvc := &mockEventService{
			emitFn: func(hid string, eventType models.EventType, payload string) (*models.RealityChangeEvent, error) {
				return &models.RealityChangeEvent{
					Base:        models.Base{ID: "evt-1"},
					HouseholdID: hid,
					EventType:   eventType,
					Status:      models.EventStatusPending,
					Payload:     payload,
				}, nil
			},
		}
		r := setupEventRouter(NewEventHandler(eventSvc))

		rec := doRequest(r, "POST", "/events",
			`{"household_id":"`+householdID+`","event_type":"flows_changed"}`)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		event, ok := result["event"].(map[string]interface{})
		if !ok {
			t.Fatalf("expected event object in response, got: %v", result)
		}
		if event["event_type"] != "flows_changed" {
			t.Errorf("expected event_type flows_changed, got %v", event["event_type"])
		}
		if event["status"] != "pending" {
			t.Errorf("expected status pending, got %v", event["status"])
		}
		if event["payload"] != "{}" {
			t.Errorf("expected empty payload to default to {}, got %v", event["payload"])
		}
	})

	t.Run("rejects unknown event type", func(t *testing.T) {
		r := setupEventRouter(NewEventHandler(&mockEventService{}))

		rec := doRequest(r, "POST", "/events",
			`{"household_id":"`+householdID+`","event_type":"house_burned_down"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("rejects missing household id", func(t *testing.T) {
		r := setupEventRouter(NewEventHandler(&mockEventService{}))

		rec := doRequest(r, "POST", "/events", `{"event_type":"manual_refresh"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("propagates service errors", func(t *testing.T) {
		eventSvc := &mockEventService{
			emitFn: func(string, models.EventType, string) (*models.RealityChangeEvent, error) {
				return nil, apperrors.ErrHouseholdNotFound
			},
		}
		r := setupEventRouter(NewEventHandler(eventSvc))

		rec := doRequest(r, "POST", "/events",
			`{"household_id":"`+householdID+`","event_type":"manual_refresh"}`)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
		}
		assertErrorCode(t, parseJSON(t, rec), "HOUSEHOLD_NOT_FOUND")
	})
}
