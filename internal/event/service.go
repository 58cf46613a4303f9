// Package event はイベント管理のドメインロジックを提供する。
// 所有者スコープのCRUDワークフローと一覧/詳細の読み取り操作を含む。
package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/eventboard/internal/metrics"
	"github.com/hitoshi/eventboard/internal/model"
	"github.com/hitoshi/eventboard/internal/repository"
	"github.com/hitoshi/eventboard/internal/security"
	"github.com/hitoshi/eventboard/internal/storage"
)

const (
	// titleMaxLength はイベントタイトルの最大長。eventsテーブルのカラム定義と揃える。
	titleMaxLength = 200
	// locationMaxLength は開催場所の最大長。
	locationMaxLength = 255
)

// dateFormats は入力として受け付ける日時フォーマット。
// RFC 3339を優先し、フォームの "YYYY-MM-DDTHH:MM" 形式にフォールバックする。
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04",
}

// EventInput はイベント作成/更新の入力フィールド。
type EventInput struct {
	Title       string
	Description string
	Date        string // 未パースの日時文字列
	Location    string
}

// ImageUpload はアップロードするバナー画像のペイロード。
type ImageUpload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Page はページネーション付きのイベント一覧。
type Page struct {
	Events     []*model.Event
	Page       int
	PageSize   int
	TotalCount int
	TotalPages int
}

// Detail はイベント詳細と閲覧ユーザーのRSVP状態。
type Detail struct {
	Event     *model.Event
	HasRSVPed bool
	RSVPCount int
}

// Service はイベント管理のサービス層。
// 作成/更新/削除は画像アップロードの順序保証と所有者チェックを含む。
type Service struct {
	eventRepo repository.EventRepository
	rsvpRepo  repository.RSVPRepository
	storage   storage.Client
	sanitizer security.DescriptionSanitizer
	metrics   metrics.MetricsCollector
	pageSize  int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	eventRepo repository.EventRepository,
	rsvpRepo repository.RSVPRepository,
	storageClient storage.Client,
	sanitizer security.DescriptionSanitizer,
	collector metrics.MetricsCollector,
	pageSize int,
) *Service {
	return &Service{
		eventRepo: eventRepo,
		rsvpRepo:  rsvpRepo,
		storage:   storageClient,
		sanitizer: sanitizer,
		metrics:   collector,
		pageSize:  pageSize,
	}
}

// Create は新規イベントを作成する。
// 画像が指定されている場合、アップロードはレコード永続化より先に行う。
// アップロードに失敗した場合はSTORAGE_UPLOAD_FAILEDを返し、イベントは作成されない。
func (s *Service) Create(ctx context.Context, userID string, input EventInput, image *ImageUpload) (*model.Event, error) {
	date, fields := validateInput(input)
	if len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	event := &model.Event{
		ID:          uuid.New().String(),
		Title:       input.Title,
		Description: s.sanitizer.Sanitize(input.Description),
		Date:        date,
		Location:    input.Location,
		CreatedBy:   userID,
		CreatedAt:   time.Now(),
	}

	// 存在が確認できていないURLを永続化しないため、アップロードが先。
	if image != nil {
		url, err := s.uploadImage(ctx, image)
		if err != nil {
			return nil, err
		}
		event.ImageURL = &url
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("イベントの作成に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordEventCreated()
	}
	slog.Info("event created",
		slog.String("event_id", event.ID),
		slog.String("user_id", userID),
	)

	return event, nil
}

// Update は既存イベントを更新する。
// イベントが存在しない場合と所有者でない場合は、存在を漏らさないよう
// 同一のEVENT_NOT_FOUNDエラーを返す。
// 新しい画像が指定された場合はレコード更新より先にアップロードし、
// image_urlを上書きする。置き換え前のリモートアセットは削除しない
// （削除は明示的なイベント削除時のみ）。
func (s *Service) Update(ctx context.Context, userID, eventID string, input EventInput, image *ImageUpload) (*model.Event, error) {
	event, err := s.findOwnedEvent(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}

	date, fields := validateInput(input)
	if len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	event.Title = input.Title
	event.Description = s.sanitizer.Sanitize(input.Description)
	event.Date = date
	event.Location = input.Location

	if image != nil {
		url, err := s.uploadImage(ctx, image)
		if err != nil {
			return nil, err
		}
		event.ImageURL = &url
	}

	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("イベントの更新に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordEventUpdated()
	}
	slog.Info("event updated",
		slog.String("event_id", event.ID),
		slog.String("user_id", userID),
	)

	return event, nil
}

// Delete はイベントを削除する。所有者チェックはUpdateと同様。
// バナー画像が設定されている場合はストレージからの削除を試みるが、
// 失敗してもログに記録するのみで、レコードの削除は続行する
// （レコード削除が主たる保証であり、アセット削除はベストエフォート）。
// 関連するRSVPはイベントより先に削除する（FKのCASCADEも同じ結果を保証する）。
func (s *Service) Delete(ctx context.Context, userID, eventID string) error {
	event, err := s.findOwnedEvent(ctx, userID, eventID)
	if err != nil {
		return err
	}

	if event.ImageURL != nil {
		if err := s.storage.Delete(ctx, *event.ImageURL); err != nil {
			slog.Warn("バナー画像の削除に失敗しました（イベント削除は続行）",
				slog.String("event_id", eventID),
				slog.String("image_url", *event.ImageURL),
				slog.String("error", err.Error()),
			)
			if s.metrics != nil {
				s.metrics.RecordStorageDeleteFailure()
			}
		}
	}

	if err := s.rsvpRepo.DeleteByEventID(ctx, eventID); err != nil {
		return fmt.Errorf("イベントのRSVP削除に失敗しました: %w", err)
	}

	if err := s.eventRepo.Delete(ctx, eventID); err != nil {
		return fmt.Errorf("イベントの削除に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordEventDeleted()
	}
	slog.Info("event deleted",
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
	)

	return nil
}

// List はイベント一覧を開催日時の昇順で取得する。pageは1始まり。
// 範囲外のページは空ページを返す（エラーにしない）。
func (s *Service) List(ctx context.Context, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}

	total, err := s.eventRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("イベント件数の取得に失敗しました: %w", err)
	}

	offset := (page - 1) * s.pageSize
	events, err := s.eventRepo.List(ctx, s.pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}

	totalPages := (total + s.pageSize - 1) / s.pageSize

	return &Page{
		Events:     events,
		Page:       page,
		PageSize:   s.pageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}

// GetDetail はイベント詳細を閲覧ユーザーのRSVP状態付きで取得する。
// viewerIDが空（未認証）の場合、HasRSVPedは常にfalse。
func (s *Service) GetDetail(ctx context.Context, eventID, viewerID string) (*Detail, error) {
	event, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗しました: %w", err)
	}
	if event == nil {
		return nil, model.NewEventNotFoundError(eventID)
	}

	hasRSVPed := false
	if viewerID != "" {
		hasRSVPed, err = s.rsvpRepo.ExistsByUserAndEvent(ctx, viewerID, eventID)
		if err != nil {
			return nil, fmt.Errorf("RSVP状態の取得に失敗しました: %w", err)
		}
	}

	count, err := s.rsvpRepo.CountByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("RSVP件数の取得に失敗しました: %w", err)
	}

	return &Detail{
		Event:     event,
		HasRSVPed: hasRSVPed,
		RSVPCount: count,
	}, nil
}

// findOwnedEvent はイベントを取得し、所有者を確認する。
// 未存在と非所有者を同一のエラーに畳み込む。
func (s *Service) findOwnedEvent(ctx context.Context, userID, eventID string) (*model.Event, error) {
	event, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗しました: %w", err)
	}
	if event == nil {
		return nil, model.NewEventNotFoundError(eventID)
	}
	if !event.IsOwnedBy(userID) {
		return nil, model.NewEventNotFoundError(eventID)
	}
	return event, nil
}

// uploadImage は画像をストレージにアップロードし、公開URLを返す。
// 失敗時はSTORAGE_UPLOAD_FAILEDに変換する。
func (s *Service) uploadImage(ctx context.Context, image *ImageUpload) (string, error) {
	start := time.Now()
	url, err := s.storage.Upload(ctx, image.Data, image.ContentType, image.Filename)
	if s.metrics != nil {
		s.metrics.RecordStorageUploadLatency(time.Since(start))
	}
	if err != nil {
		slog.Error("画像のアップロードに失敗しました",
			slog.String("filename", image.Filename),
			slog.String("error", err.Error()),
		)
		return "", model.NewStorageUploadError()
	}
	return url, nil
}

// validateInput は入力フィールドを検証し、パース済みの日時と
// フィールド単位のエラーメッセージを返す。
func validateInput(input EventInput) (time.Time, map[string]string) {
	fields := make(map[string]string)

	if input.Title == "" {
		fields["title"] = "タイトルは必須です。"
	} else if utf8.RuneCountInString(input.Title) > titleMaxLength {
		fields["title"] = fmt.Sprintf("タイトルは%d文字以内で指定してください。", titleMaxLength)
	}

	if input.Description == "" {
		fields["description"] = "説明は必須です。"
	}

	if input.Location == "" {
		fields["location"] = "開催場所は必須です。"
	} else if utf8.RuneCountInString(input.Location) > locationMaxLength {
		fields["location"] = fmt.Sprintf("開催場所は%d文字以内で指定してください。", locationMaxLength)
	}

	var date time.Time
	if input.Date == "" {
		fields["date"] = "開催日時は必須です。"
	} else {
		parsed := false
		for _, format := range dateFormats {
			if d, err := time.Parse(format, input.Date); err == nil {
				date = d
				parsed = true
				break
			}
		}
		if !parsed {
			fields["date"] = "開催日時の形式が不正です（例: 2025-06-01T18:00）。"
		}
	}

	return date, fields
}
