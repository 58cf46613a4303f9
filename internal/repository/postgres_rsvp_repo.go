package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/eventboard/internal/model"
)

// uniqueViolationCode はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolationCode = "23505"

// PostgresRSVPRepo はPostgreSQLを使用したRSVPリポジトリ。
type PostgresRSVPRepo struct {
	db *sql.DB
}

// NewPostgresRSVPRepo はPostgresRSVPRepoを生成する。
func NewPostgresRSVPRepo(db *sql.DB) *PostgresRSVPRepo {
	return &PostgresRSVPRepo{db: db}
}

// FindByUserAndEvent はユーザーIDとイベントIDでRSVPを検索する。見つからない場合はnilを返す。
func (r *PostgresRSVPRepo) FindByUserAndEvent(ctx context.Context, userID, eventID string) (*model.RSVP, error) {
	rsvp := &model.RSVP{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, event_id, created_at
		 FROM rsvps WHERE user_id = $1 AND event_id = $2`,
		userID, eventID,
	).Scan(&rsvp.ID, &rsvp.UserID, &rsvp.EventID, &rsvp.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("RSVPの検索に失敗しました: %w", err)
	}

	return rsvp, nil
}

// Create はRSVPを作成する。
// (user_id, event_id)の一意制約に違反した場合はmodel.ErrRSVPExistsを返す。
// 並行トグルの競合はこのエラーを通じてトグルサービスが解決する。
func (r *PostgresRSVPRepo) Create(ctx context.Context, rsvp *model.RSVP) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rsvps (id, user_id, event_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		rsvp.ID, rsvp.UserID, rsvp.EventID, rsvp.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return model.ErrRSVPExists
		}
		return fmt.Errorf("RSVPの作成に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserAndEvent はユーザーIDとイベントIDでRSVPを削除する。
// 対象が存在しない場合もエラーにしない（冪等）。
func (r *PostgresRSVPRepo) DeleteByUserAndEvent(ctx context.Context, userID, eventID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM rsvps WHERE user_id = $1 AND event_id = $2`,
		userID, eventID,
	)
	if err != nil {
		return fmt.Errorf("RSVPの削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteByEventID は指定イベントの全RSVPを削除する。
func (r *PostgresRSVPRepo) DeleteByEventID(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM rsvps WHERE event_id = $1`,
		eventID,
	)
	if err != nil {
		return fmt.Errorf("イベントの全RSVPの削除に失敗しました: %w", err)
	}
	return nil
}

// ExistsByUserAndEvent は(user, event)ペアのRSVPが存在するかを返す。
func (r *PostgresRSVPRepo) ExistsByUserAndEvent(ctx context.Context, userID, eventID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM rsvps WHERE user_id = $1 AND event_id = $2)`,
		userID, eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("RSVP存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// CountByEventID は指定イベントのRSVP件数を返す。
func (r *PostgresRSVPRepo) CountByEventID(ctx context.Context, eventID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rsvps WHERE event_id = $1`,
		eventID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("RSVP件数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ RSVPRepository = (*PostgresRSVPRepo)(nil)
