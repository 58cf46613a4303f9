package event

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/eventboard/internal/model"
)

// mockEventRepo はEventRepositoryのモック実装。
type mockEventRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.Event, error)
	createFn   func(ctx context.Context, event *model.Event) error
	updateFn   func(ctx context.Context, event *model.Event) error
	deleteFn   func(ctx context.Context, id string) error
	listFn     func(ctx context.Context, limit, offset int) ([]*model.Event, error)
	countFn    func(ctx context.Context) (int, error)
}

func (m *mockEventRepo) FindByID(ctx context.Context, id string) (*model.Event, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockEventRepo) Create(ctx context.Context, event *model.Event) error {
	return m.createFn(ctx, event)
}

func (m *mockEventRepo) Update(ctx context.Context, event *model.Event) error {
	return m.updateFn(ctx, event)
}

func (m *mockEventRepo) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockEventRepo) List(ctx context.Context, limit, offset int) ([]*model.Event, error) {
	return m.listFn(ctx, limit, offset)
}

func (m *mockEventRepo) Count(ctx context.Context) (int, error) {
	return m.countFn(ctx)
}

// mockRSVPRepo はRSVPRepositoryのモック実装。
type mockRSVPRepo struct {
	findByUserAndEventFn   func(ctx context.Context, userID, eventID string) (*model.RSVP, error)
	createFn               func(ctx context.Context, rsvp *model.RSVP) error
	deleteByUserAndEventFn func(ctx context.Context, userID, eventID string) error
	deleteByEventIDFn      func(ctx context.Context, eventID string) error
	existsByUserAndEventFn func(ctx context.Context, userID, eventID string) (bool, error)
	countByEventIDFn       func(ctx context.Context, eventID string) (int, error)
}

func (m *mockRSVPRepo) FindByUserAndEvent(ctx context.Context, userID, eventID string) (*model.RSVP, error) {
	return m.findByUserAndEventFn(ctx, userID, eventID)
}

func (m *mockRSVPRepo) Create(ctx context.Context, rsvp *model.RSVP) error {
	return m.createFn(ctx, rsvp)
}

func (m *mockRSVPRepo) DeleteByUserAndEvent(ctx context.Context, userID, eventID string) error {
	return m.deleteByUserAndEventFn(ctx, userID, eventID)
}

func (m *mockRSVPRepo) DeleteByEventID(ctx context.Context, eventID string) error {
	return m.deleteByEventIDFn(ctx, eventID)
}

func (m *mockRSVPRepo) ExistsByUserAndEvent(ctx context.Context, userID, eventID string) (bool, error) {
	return m.existsByUserAndEventFn(ctx, userID, eventID)
}

func (m *mockRSVPRepo) CountByEventID(ctx context.Context, eventID string) (int, error) {
	return m.countByEventIDFn(ctx, eventID)
}

// mockStorage はstorage.Clientのモック実装。
type mockStorage struct {
	uploadFn func(ctx context.Context, data []byte, contentType, name string) (string, error)
	deleteFn func(ctx context.Context, publicURL string) error
}

func (m *mockStorage) Upload(ctx context.Context, data []byte, contentType, name string) (string, error) {
	return m.uploadFn(ctx, data, contentType, name)
}

func (m *mockStorage) Delete(ctx context.Context, publicURL string) error {
	return m.deleteFn(ctx, publicURL)
}

// passthroughSanitizer はサニタイズを行わないテスト用の実装。
type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(rawHTML string) string { return rawHTML }

func validInput() EventInput {
	return EventInput{
		Title:       "もくもく会 #12",
		Description: "<p>月例のもくもく会です。</p>",
		Date:        "2026-10-01T19:00",
		Location:    "渋谷コワーキングスペース",
	}
}

func newTestService(eventRepo *mockEventRepo, rsvpRepo *mockRSVPRepo, st *mockStorage) *Service {
	return NewService(eventRepo, rsvpRepo, st, passthroughSanitizer{}, nil, 5)
}

func TestService_Create(t *testing.T) {
	var created *model.Event
	eventRepo := &mockEventRepo{
		createFn: func(ctx context.Context, event *model.Event) error {
			created = event
			return nil
		},
	}

	svc := newTestService(eventRepo, &mockRSVPRepo{}, &mockStorage{})

	event, err := svc.Create(context.Background(), "user-1", validInput(), nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created == nil {
		t.Fatal("リポジトリのCreateが呼ばれていません")
	}
	if event.ID == "" {
		t.Error("イベントIDが設定されていません")
	}
	if event.CreatedBy != "user-1" {
		t.Errorf("CreatedBy = %q, want %q", event.CreatedBy, "user-1")
	}
	if event.ImageURL != nil {
		t.Errorf("画像なしの作成でImageURL = %v, want nil", *event.ImageURL)
	}
	wantDate := time.Date(2026, 10, 1, 19, 0, 0, 0, time.UTC)
	if !event.Date.Equal(wantDate) {
		t.Errorf("Date = %v, want %v", event.Date, wantDate)
	}
}

func TestService_Create_WithImage(t *testing.T) {
	uploaded := false
	persistedAfterUpload := false

	st := &mockStorage{
		uploadFn: func(ctx context.Context, data []byte, contentType, name string) (string, error) {
			uploaded = true
			return "https://cdn.example.com/media/abc_banner.png", nil
		},
	}
	eventRepo := &mockEventRepo{
		createFn: func(ctx context.Context, event *model.Event) error {
			persistedAfterUpload = uploaded
			return nil
		},
	}

	svc := newTestService(eventRepo, &mockRSVPRepo{}, st)

	image := &ImageUpload{Data: []byte("png-bytes"), ContentType: "image/png", Filename: "banner.png"}
	event, err := svc.Create(context.Background(), "user-1", validInput(), image)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !persistedAfterUpload {
		t.Error("アップロード完了前にレコードが永続化されています")
	}
	if event.ImageURL == nil || *event.ImageURL != "https://cdn.example.com/media/abc_banner.png" {
		t.Errorf("ImageURL = %v, want アップロード結果のURL", event.ImageURL)
	}
}

func TestService_Create_UploadFailure(t *testing.T) {
	createCalled := false

	st := &mockStorage{
		uploadFn: func(ctx context.Context, data []byte, contentType, name string) (string, error) {
			return "", errors.New("connection refused")
		},
	}
	eventRepo := &mockEventRepo{
		createFn: func(ctx context.Context, event *model.Event) error {
			createCalled = true
			return nil
		},
	}

	svc := newTestService(eventRepo, &mockRSVPRepo{}, st)

	image := &ImageUpload{Data: []byte("png-bytes"), ContentType: "image/png", Filename: "banner.png"}
	_, err := svc.Create(context.Background(), "user-1", validInput(), image)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeStorageUploadFailed {
		t.Fatalf("Create() error = %v, want STORAGE_UPLOAD_FAILED", err)
	}
	if createCalled {
		t.Error("アップロード失敗後にイベントが作成されています")
	}
}

func TestService_Create_Validation(t *testing.T) {
	longTitle := ""
	for range 201 {
		longTitle += "a"
	}

	tests := []struct {
		name      string
		modify    func(in *EventInput)
		wantField string
	}{
		{
			name:      "タイトルが空",
			modify:    func(in *EventInput) { in.Title = "" },
			wantField: "title",
		},
		{
			name:      "タイトルが長すぎる",
			modify:    func(in *EventInput) { in.Title = longTitle },
			wantField: "title",
		},
		{
			name:      "説明が空",
			modify:    func(in *EventInput) { in.Description = "" },
			wantField: "description",
		},
		{
			name:      "開催場所が空",
			modify:    func(in *EventInput) { in.Location = "" },
			wantField: "location",
		},
		{
			name:      "日時が空",
			modify:    func(in *EventInput) { in.Date = "" },
			wantField: "date",
		},
		{
			name:      "日時の形式が不正",
			modify:    func(in *EventInput) { in.Date = "来週の金曜" },
			wantField: "date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&mockEventRepo{}, &mockRSVPRepo{}, &mockStorage{})

			input := validInput()
			tt.modify(&input)

			_, err := svc.Create(context.Background(), "user-1", input, nil)

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailed {
				t.Fatalf("Create() error = %v, want VALIDATION_FAILED", err)
			}
			if _, ok := apiErr.Fields[tt.wantField]; !ok {
				t.Errorf("Fields = %v, want キー %q を含む", apiErr.Fields, tt.wantField)
			}
		})
	}
}

// 文字数制限がバイト数ではなく文字数で判定されることを検証
// （マルチバイトのタイトルはVARCHAR(200)に収まる限り許容される）
func TestService_Create_LengthLimitsCountRunes(t *testing.T) {
	eventRepo := &mockEventRepo{
		createFn: func(ctx context.Context, event *model.Event) error { return nil },
	}
	svc := newTestService(eventRepo, &mockRSVPRepo{}, &mockStorage{})

	input := validInput()
	input.Title = strings.Repeat("祭", 200)    // 600バイトだが200文字
	input.Location = strings.Repeat("京", 255) // 765バイトだが255文字

	if _, err := svc.Create(context.Background(), "user-1", input, nil); err != nil {
		t.Fatalf("Create() error = %v, want nil", err)
	}

	input.Title = strings.Repeat("祭", 201)
	_, err := svc.Create(context.Background(), "user-1", input, nil)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailed {
		t.Fatalf("Create() error = %v, want VALIDATION_FAILED", err)
	}
	if _, ok := apiErr.Fields["title"]; !ok {
		t.Errorf("Fields = %v, want キー %q を含む", apiErr.Fields, "title")
	}
}

func TestService_Create_SanitizesDescription(t *testing.T) {
	var created *model.Event
	eventRepo := &mockEventRepo{
		createFn: func(ctx context.Context, event *model.Event) error {
			created = event
			return nil
		},
	}

	sanitizer := markingSanitizer{}
	svc := NewService(eventRepo, &mockRSVPRepo{}, &mockStorage{}, sanitizer, nil, 5)

	_, err := svc.Create(context.Background(), "user-1", validInput(), nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Description != "sanitized" {
		t.Errorf("Description = %q, サニタイザーを経由していません", created.Description)
	}
}

// markingSanitizer はサニタイズの呼び出しを検証するためのテスト用実装。
type markingSanitizer struct{}

func (markingSanitizer) Sanitize(rawHTML string) string { return "sanitized" }

func TestService_Update_OwnershipCollapse(t *testing.T) {
	tests := []struct {
		name  string
		event *model.Event
	}{
		{
			name:  "イベントが存在しない",
			event: nil,
		},
		{
			name:  "所有者でない",
			event: &model.Event{ID: "event-1", CreatedBy: "other-user"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eventRepo := &mockEventRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
					return tt.event, nil
				},
			}
			svc := newTestService(eventRepo, &mockRSVPRepo{}, &mockStorage{})

			_, err := svc.Update(context.Background(), "user-1", "event-1", validInput(), nil)

			// 未存在と非所有者はクライアントから区別できてはならない。
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEventNotFound {
				t.Fatalf("Update() error = %v, want EVENT_NOT_FOUND", err)
			}
		})
	}
}

func TestService_Update(t *testing.T) {
	existing := &model.Event{
		ID:        "event-1",
		Title:     "旧タイトル",
		CreatedBy: "user-1",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	var updated *model.Event
	eventRepo := &mockEventRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, event *model.Event) error {
			updated = event
			return nil
		},
	}

	svc := newTestService(eventRepo, &mockRSVPRepo{}, &mockStorage{})

	event, err := svc.Update(context.Background(), "user-1", "event-1", validInput(), nil)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated == nil {
		t.Fatal("リポジトリのUpdateが呼ばれていません")
	}
	if event.Title != "もくもく会 #12" {
		t.Errorf("Title = %q, 更新されていません", event.Title)
	}
	if event.CreatedBy != "user-1" {
		t.Errorf("CreatedBy = %q, 所有者が変わっています", event.CreatedBy)
	}
}

func TestService_Update_ReplacesImageWithoutDeletingOld(t *testing.T) {
	oldURL := "https://cdn.example.com/media/old_banner.png"
	existing := &model.Event{ID: "event-1", CreatedBy: "user-1", ImageURL: &oldURL}

	deleteCalled := false
	st := &mockStorage{
		uploadFn: func(ctx context.Context, data []byte, contentType, name string) (string, error) {
			return "https://cdn.example.com/media/new_banner.png", nil
		},
		deleteFn: func(ctx context.Context, publicURL string) error {
			deleteCalled = true
			return nil
		},
	}
	eventRepo := &mockEventRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
			return existing, nil
		},
		updateFn: func(ctx context.Context, event *model.Event) error { return nil },
	}

	svc := newTestService(eventRepo, &mockRSVPRepo{}, st)

	image := &ImageUpload{Data: []byte("png-bytes"), ContentType: "image/png", Filename: "new_banner.png"}
	event, err := svc.Update(context.Background(), "user-1", "event-1", validInput(), image)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if event.ImageURL == nil || *event.ImageURL != "https://cdn.example.com/media/new_banner.png" {
		t.Errorf("ImageURL = %v, 新しいURLに置き換わっていません", event.ImageURL)
	}
	// 置き換え前のアセット削除はイベント削除時のみ。
	if deleteCalled {
		t.Error("更新時に旧画像のDeleteが呼ばれています")
	}
}

func TestService_Delete(t *testing.T) {
	imageURL := "https://cdn.example.com/media/banner.png"
	existing := &model.Event{ID: "event-1", CreatedBy: "user-1", ImageURL: &imageURL}

	var deletedURL string
	rsvpsDeleted := false
	eventDeleted := false

	st := &mockStorage{
		deleteFn: func(ctx context.Context, publicURL string) error {
			deletedURL = publicURL
			return nil
		},
	}
	eventRepo := &mockEventRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
			return existing, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			eventDeleted = true
			return nil
		},
	}
	rsvpRepo := &mockRSVPRepo{
		deleteByEventIDFn: func(ctx context.Context, eventID string) error {
			rsvpsDeleted = true
			return nil
		},
	}

	svc := newTestService(eventRepo, rsvpRepo, st)

	if err := svc.Delete(context.Background(), "user-1", "event-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deletedURL != imageURL {
		t.Errorf("削除対象の画像URL = %q, want %q", deletedURL, imageURL)
	}
	if !rsvpsDeleted {
		t.Error("関連RSVPが削除されていません")
	}
	if !eventDeleted {
		t.Error("イベントレコードが削除されていません")
	}
}

func TestService_Delete_StorageFailureDoesNotAbort(t *testing.T) {
	imageURL := "https://cdn.example.com/media/banner.png"
	existing := &model.Event{ID: "event-1", CreatedBy: "user-1", ImageURL: &imageURL}

	eventDeleted := false
	st := &mockStorage{
		deleteFn: func(ctx context.Context, publicURL string) error {
			return errors.New("storage unavailable")
		},
	}
	eventRepo := &mockEventRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
			return existing, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			eventDeleted = true
			return nil
		},
	}
	rsvpRepo := &mockRSVPRepo{
		deleteByEventIDFn: func(ctx context.Context, eventID string) error { return nil },
	}

	svc := newTestService(eventRepo, rsvpRepo, st)

	if err := svc.Delete(context.Background(), "user-1", "event-1"); err != nil {
		t.Fatalf("Delete() error = %v, アセット削除失敗はベストエフォート", err)
	}
	if !eventDeleted {
		t.Error("アセット削除失敗後にレコード削除が中断されています")
	}
}

func TestService_Delete_NotOwner(t *testing.T) {
	eventRepo := &mockEventRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
			return &model.Event{ID: "event-1", CreatedBy: "other-user"}, nil
		},
	}
	svc := newTestService(eventRepo, &mockRSVPRepo{}, &mockStorage{})

	err := svc.Delete(context.Background(), "user-1", "event-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEventNotFound {
		t.Fatalf("Delete() error = %v, want EVENT_NOT_FOUND", err)
	}
}

func TestService_List(t *testing.T) {
	tests := []struct {
		name           string
		page           int
		total          int
		wantPage       int
		wantOffset     int
		wantTotalPages int
	}{
		{name: "1ページ目", page: 1, total: 12, wantPage: 1, wantOffset: 0, wantTotalPages: 3},
		{name: "2ページ目", page: 2, total: 12, wantPage: 2, wantOffset: 5, wantTotalPages: 3},
		{name: "0以下は1に丸める", page: 0, total: 12, wantPage: 1, wantOffset: 0, wantTotalPages: 3},
		{name: "範囲外のページ", page: 99, total: 12, wantPage: 99, wantOffset: 490, wantTotalPages: 3},
		{name: "イベントなし", page: 1, total: 0, wantPage: 1, wantOffset: 0, wantTotalPages: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit, gotOffset int
			eventRepo := &mockEventRepo{
				countFn: func(ctx context.Context) (int, error) {
					return tt.total, nil
				},
				listFn: func(ctx context.Context, limit, offset int) ([]*model.Event, error) {
					gotLimit = limit
					gotOffset = offset
					return []*model.Event{}, nil
				},
			}

			svc := newTestService(eventRepo, &mockRSVPRepo{}, &mockStorage{})

			page, err := svc.List(context.Background(), tt.page)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if gotLimit != 5 {
				t.Errorf("limit = %d, want 5", gotLimit)
			}
			if gotOffset != tt.wantOffset {
				t.Errorf("offset = %d, want %d", gotOffset, tt.wantOffset)
			}
			if page.Page != tt.wantPage {
				t.Errorf("Page = %d, want %d", page.Page, tt.wantPage)
			}
			if page.TotalPages != tt.wantTotalPages {
				t.Errorf("TotalPages = %d, want %d", page.TotalPages, tt.wantTotalPages)
			}
			if page.TotalCount != tt.total {
				t.Errorf("TotalCount = %d, want %d", page.TotalCount, tt.total)
			}
		})
	}
}

func TestService_GetDetail(t *testing.T) {
	existing := &model.Event{ID: "event-1", Title: "もくもく会", CreatedBy: "owner-1"}

	tests := []struct {
		name          string
		viewerID      string
		exists        bool
		wantHasRSVPed bool
		wantExistsCall bool
	}{
		{name: "未認証の閲覧", viewerID: "", exists: true, wantHasRSVPed: false, wantExistsCall: false},
		{name: "RSVP済みのユーザー", viewerID: "user-1", exists: true, wantHasRSVPed: true, wantExistsCall: true},
		{name: "RSVPしていないユーザー", viewerID: "user-2", exists: false, wantHasRSVPed: false, wantExistsCall: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existsCalled := false
			eventRepo := &mockEventRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
					return existing, nil
				},
			}
			rsvpRepo := &mockRSVPRepo{
				existsByUserAndEventFn: func(ctx context.Context, userID, eventID string) (bool, error) {
					existsCalled = true
					return tt.exists, nil
				},
				countByEventIDFn: func(ctx context.Context, eventID string) (int, error) {
					return 7, nil
				},
			}

			svc := newTestService(eventRepo, rsvpRepo, &mockStorage{})

			detail, err := svc.GetDetail(context.Background(), "event-1", tt.viewerID)
			if err != nil {
				t.Fatalf("GetDetail() error = %v", err)
			}
			if detail.HasRSVPed != tt.wantHasRSVPed {
				t.Errorf("HasRSVPed = %v, want %v", detail.HasRSVPed, tt.wantHasRSVPed)
			}
			if existsCalled != tt.wantExistsCall {
				t.Errorf("ExistsByUserAndEventの呼び出し = %v, want %v", existsCalled, tt.wantExistsCall)
			}
			if detail.RSVPCount != 7 {
				t.Errorf("RSVPCount = %d, want 7", detail.RSVPCount)
			}
		})
	}
}

func TestService_GetDetail_NotFound(t *testing.T) {
	eventRepo := &mockEventRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Event, error) {
			return nil, nil
		},
	}
	svc := newTestService(eventRepo, &mockRSVPRepo{}, &mockStorage{})

	_, err := svc.GetDetail(context.Background(), "missing", "")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEventNotFound {
		t.Fatalf("GetDetail() error = %v, want EVENT_NOT_FOUND", err)
	}
}
