package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/eventboard/internal/middleware"
	"github.com/hitoshi/eventboard/internal/model"
	"github.com/hitoshi/eventboard/internal/rsvp"
)

// mockRSVPService はRSVPServiceInterfaceのモック実装。
type mockRSVPService struct {
	toggleFn func(ctx context.Context, userID, eventID string) (*rsvp.Result, error)
}

func (m *mockRSVPService) Toggle(ctx context.Context, userID, eventID string) (*rsvp.Result, error) {
	return m.toggleFn(ctx, userID, eventID)
}

func TestRSVPHandler_Toggle(t *testing.T) {
	svc := &mockRSVPService{
		toggleFn: func(ctx context.Context, userID, eventID string) (*rsvp.Result, error) {
			if userID != "user-1" || eventID != "event-1" {
				t.Errorf("Toggle(%q, %q)", userID, eventID)
			}
			return &rsvp.Result{Attending: true, RSVPCount: 5}, nil
		},
	}

	h := NewRSVPHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/events/event-1/rsvp", nil)
	req = withURLParam(req, "id", "event-1")
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()

	h.Toggle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp rsvpResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if !resp.Attending || resp.RSVPCount != 5 {
		t.Errorf("レスポンス = %+v", resp)
	}
}

func TestRSVPHandler_Toggle_EventNotFound(t *testing.T) {
	svc := &mockRSVPService{
		toggleFn: func(ctx context.Context, userID, eventID string) (*rsvp.Result, error) {
			return nil, model.NewEventNotFoundError(eventID)
		},
	}

	h := NewRSVPHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/events/missing/rsvp", nil)
	req = withURLParam(req, "id", "missing")
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()

	h.Toggle(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRSVPHandler_Toggle_NoSession(t *testing.T) {
	h := NewRSVPHandler(&mockRSVPService{})

	req := httptest.NewRequest(http.MethodPost, "/api/events/event-1/rsvp", nil)
	rec := httptest.NewRecorder()

	h.Toggle(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
