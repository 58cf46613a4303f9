package handler

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/eventboard/internal/event"
	"github.com/hitoshi/eventboard/internal/middleware"
	"github.com/hitoshi/eventboard/internal/model"
)

// EventServiceInterface はイベントハンドラーが必要とするサービスインターフェース。
type EventServiceInterface interface {
	Create(ctx context.Context, userID string, input event.EventInput, image *event.ImageUpload) (*model.Event, error)
	Update(ctx context.Context, userID, eventID string, input event.EventInput, image *event.ImageUpload) (*model.Event, error)
	Delete(ctx context.Context, userID, eventID string) error
	List(ctx context.Context, page int) (*event.Page, error)
	GetDetail(ctx context.Context, eventID, viewerID string) (*event.Detail, error)
}

// EventHandlerConfig はイベントハンドラーの設定。
type EventHandlerConfig struct {
	ImageMaxSize int64 // バナー画像の最大バイト数
}

// EventHandler はイベント管理のHTTPハンドラー。
type EventHandler struct {
	service EventServiceInterface
	config  EventHandlerConfig
}

// NewEventHandler はEventHandlerを生成する。
func NewEventHandler(service EventServiceInterface, config EventHandlerConfig) *EventHandler {
	return &EventHandler{
		service: service,
		config:  config,
	}
}

// eventRequest はJSON形式のイベント作成/更新リクエストのボディ。
type eventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Location    string `json:"location"`
}

// eventResponse はイベント情報のAPIレスポンス。
type eventResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Location    string    `json:"location"`
	ImageURL    *string   `json:"image_url"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// eventListResponse はページネーション付きイベント一覧のAPIレスポンス。
type eventListResponse struct {
	Events     []eventResponse `json:"events"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalCount int             `json:"total_count"`
	TotalPages int             `json:"total_pages"`
}

// eventDetailResponse はイベント詳細のAPIレスポンス。
// 閲覧ユーザーのRSVP状態を含む。未認証の場合hasRsvpedは常にfalse。
type eventDetailResponse struct {
	eventResponse
	HasRSVPed bool `json:"hasRsvped"`
	RSVPCount int  `json:"rsvp_count"`
}

// ListEvents はイベント一覧を取得する。認証不要。
// GET /api/events?page=N
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("pageは数値で指定してください"))
			return
		}
		page = parsed
	}

	result, err := h.service.List(r.Context(), page)
	if err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	events := make([]eventResponse, len(result.Events))
	for i, e := range result.Events {
		events[i] = toEventResponse(e)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(eventListResponse{
		Events:     events,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalCount: result.TotalCount,
		TotalPages: result.TotalPages,
	})
}

// GetEvent はイベント詳細を取得する。認証不要だが、
// 有効なセッションがある場合は閲覧ユーザーのRSVP状態を反映する。
// GET /api/events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")

	// OptionalSessionMiddleware経由のため、未認証でもエラーにしない
	viewerID, _ := middleware.UserIDFromContext(r.Context())

	detail, err := h.service.GetDetail(r.Context(), eventID, viewerID)
	if err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(eventDetailResponse{
		eventResponse: toEventResponse(detail.Event),
		HasRSVPed:     detail.HasRSVPed,
		RSVPCount:     detail.RSVPCount,
	})
}

// CreateEvent はイベント作成を処理する。
// multipart/form-data（画像付き）とJSON（画像なし）の両方を受け付ける。
// POST /api/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	input, image, parseErr := h.parseEventRequest(r)
	if parseErr != nil {
		middleware.HandleServiceError(w, parseErr)
		return
	}

	created, err := h.service.Create(r.Context(), userID, input, image)
	if err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toEventResponse(created))
}

// UpdateEvent はイベント更新を処理する。所有者のみ。
// PUT /api/events/{id}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	eventID := chi.URLParam(r, "id")

	input, image, parseErr := h.parseEventRequest(r)
	if parseErr != nil {
		middleware.HandleServiceError(w, parseErr)
		return
	}

	updated, err := h.service.Update(r.Context(), userID, eventID, input, image)
	if err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEventResponse(updated))
}

// DeleteEvent はイベント削除を処理する。所有者のみ。
// DELETE /api/events/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	eventID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), userID, eventID); err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseEventRequest はリクエストからイベントの入力フィールドと画像を取り出す。
// Content-Typeがmultipart/form-dataの場合はフォームフィールドとimageファイルを、
// それ以外はJSONボディを解釈する。
func (h *EventHandler) parseEventRequest(r *http.Request) (event.EventInput, *event.ImageUpload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		return h.parseMultipartEventRequest(r)
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return event.EventInput{}, nil, model.NewInvalidRequestError("リクエストボディの解析に失敗しました")
	}

	return event.EventInput{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Location:    req.Location,
	}, nil, nil
}

// parseMultipartEventRequest はmultipartフォームからフィールドと画像を取り出す。
// 画像はimage/*のContent-Typeかつ設定された最大サイズ以下であることを検証する。
func (h *EventHandler) parseMultipartEventRequest(r *http.Request) (event.EventInput, *event.ImageUpload, error) {
	if err := r.ParseMultipartForm(h.config.ImageMaxSize); err != nil {
		return event.EventInput{}, nil, model.NewInvalidRequestError("multipartフォームの解析に失敗しました")
	}

	input := event.EventInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Date:        r.FormValue("date"),
		Location:    r.FormValue("location"),
	}

	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return input, nil, nil
	}
	if err != nil {
		return event.EventInput{}, nil, model.NewInvalidRequestError("imageフィールドの読み取りに失敗しました")
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return event.EventInput{}, nil, model.NewValidationError(map[string]string{
			"image": "画像ファイル（image/*）のみアップロードできます。",
		})
	}

	// 最大サイズ+1バイトまで読み、超過を検出する
	data, err := io.ReadAll(io.LimitReader(file, h.config.ImageMaxSize+1))
	if err != nil {
		return event.EventInput{}, nil, model.NewInvalidRequestError("画像の読み取りに失敗しました")
	}
	if int64(len(data)) > h.config.ImageMaxSize {
		return event.EventInput{}, nil, model.NewValidationError(map[string]string{
			"image": "画像サイズが上限を超えています。",
		})
	}

	return input, &event.ImageUpload{
		Data:        data,
		ContentType: contentType,
		Filename:    header.Filename,
	}, nil
}

// toEventResponse はmodel.EventからAPIレスポンスに変換する。
func toEventResponse(e *model.Event) eventResponse {
	return eventResponse{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Date:        e.Date,
		Location:    e.Location,
		ImageURL:    e.ImageURL,
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt,
	}
}
