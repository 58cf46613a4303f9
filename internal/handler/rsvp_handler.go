package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/eventboard/internal/middleware"
	"github.com/hitoshi/eventboard/internal/model"
	"github.com/hitoshi/eventboard/internal/rsvp"
)

// RSVPServiceInterface はRSVPハンドラーが必要とするサービスインターフェース。
type RSVPServiceInterface interface {
	// Toggle はユーザーのRSVPを反転し、操作後の状態を返す。
	Toggle(ctx context.Context, userID, eventID string) (*rsvp.Result, error)
}

// RSVPHandler はRSVPトグルのHTTPハンドラー。
type RSVPHandler struct {
	service RSVPServiceInterface
}

// NewRSVPHandler はRSVPHandlerを生成する。
func NewRSVPHandler(service RSVPServiceInterface) *RSVPHandler {
	return &RSVPHandler{service: service}
}

// rsvpResponse はトグル操作後のRSVP状態のAPIレスポンス。
type rsvpResponse struct {
	Attending bool `json:"attending"`
	RSVPCount int  `json:"rsvp_count"`
}

// Toggle はRSVPのトグルを処理する。冪等な反転操作で、
// 同じリクエストを2回送ると元の状態に戻る。
// POST /api/events/{id}/rsvp
func (h *RSVPHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	eventID := chi.URLParam(r, "id")

	result, err := h.service.Toggle(r.Context(), userID, eventID)
	if err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rsvpResponse{
		Attending: result.Attending,
		RSVPCount: result.RSVPCount,
	})
}
