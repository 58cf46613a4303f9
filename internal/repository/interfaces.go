// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/eventboard/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れの全セッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// EventRepository はイベントデータの永続化インターフェース。
type EventRepository interface {
	// FindByID は指定IDのイベントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Event, error)

	// Create はイベントを作成する。
	Create(ctx context.Context, event *model.Event) error

	// Update はイベントの可変フィールド（title, description, date, location, image_url）を更新する。
	// created_byとcreated_atは変更しない。
	Update(ctx context.Context, event *model.Event) error

	// Delete は指定IDのイベントを削除する。
	Delete(ctx context.Context, id string) error

	// List はイベント一覧を開催日時の昇順で取得する。
	// offsetが総件数を超える場合は空スライスを返す。
	List(ctx context.Context, limit, offset int) ([]*model.Event, error)

	// Count はイベントの総件数を返す。
	Count(ctx context.Context) (int, error)
}

// RSVPRepository はRSVPデータの永続化インターフェース。
// (user_id, event_id)ペアの一意性はDBの一意制約で保証される。
type RSVPRepository interface {
	// FindByUserAndEvent はユーザーIDとイベントIDでRSVPを検索する。見つからない場合はnilを返す。
	FindByUserAndEvent(ctx context.Context, userID, eventID string) (*model.RSVP, error)

	// Create はRSVPを作成する。
	// 同一(user, event)ペアのRSVPが既に存在する場合はmodel.ErrRSVPExistsを返す。
	Create(ctx context.Context, rsvp *model.RSVP) error

	// DeleteByUserAndEvent はユーザーIDとイベントIDでRSVPを削除する。
	DeleteByUserAndEvent(ctx context.Context, userID, eventID string) error

	// DeleteByEventID は指定イベントの全RSVPを削除する。
	DeleteByEventID(ctx context.Context, eventID string) error

	// ExistsByUserAndEvent は(user, event)ペアのRSVPが存在するかを返す。
	ExistsByUserAndEvent(ctx context.Context, userID, eventID string) (bool, error)

	// CountByEventID は指定イベントのRSVP件数を返す。
	CountByEventID(ctx context.Context, eventID string) (int, error)
}
