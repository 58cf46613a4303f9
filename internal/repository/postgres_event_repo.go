package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/eventboard/internal/model"
)

// PostgresEventRepo はPostgreSQLを使用したイベントリポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

// FindByID は指定IDのイベントを取得する。見つからない場合はnilを返す。
func (r *PostgresEventRepo) FindByID(ctx context.Context, id string) (*model.Event, error) {
	event := &model.Event{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, date, location, image_url, created_by, created_at
		 FROM events WHERE id = $1`,
		id,
	).Scan(&event.ID, &event.Title, &event.Description, &event.Date, &event.Location,
		&event.ImageURL, &event.CreatedBy, &event.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗しました: %w", err)
	}

	return event, nil
}

// Create はイベントを作成する。
func (r *PostgresEventRepo) Create(ctx context.Context, event *model.Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, title, description, date, location, image_url, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.Title, event.Description, event.Date, event.Location,
		event.ImageURL, event.CreatedBy, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("イベントの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はイベントの可変フィールドを更新する。created_byとcreated_atは変更しない。
func (r *PostgresEventRepo) Update(ctx context.Context, event *model.Event) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE events
		 SET title = $2, description = $3, date = $4, location = $5, image_url = $6
		 WHERE id = $1`,
		event.ID, event.Title, event.Description, event.Date, event.Location, event.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("イベントの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("イベントが見つかりません: %s", event.ID)
	}
	return nil
}

// Delete は指定IDのイベントを削除する。
// 関連するrsvpsはFK制約のCASCADE削除で自動的に処理される。
func (r *PostgresEventRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM events WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("イベントの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("イベントが見つかりません: %s", id)
	}
	return nil
}

// List はイベント一覧を開催日時の昇順で取得する。
// offsetが総件数を超える場合は空スライスを返す（エラーにしない）。
func (r *PostgresEventRepo) List(ctx context.Context, limit, offset int) ([]*model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, description, date, location, image_url, created_by, created_at
		 FROM events ORDER BY date ASC, id ASC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		event := &model.Event{}
		if err := rows.Scan(&event.ID, &event.Title, &event.Description, &event.Date,
			&event.Location, &event.ImageURL, &event.CreatedBy, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("イベント行の読み取りに失敗しました: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("イベント一覧の走査に失敗しました: %w", err)
	}
	return events, nil
}

// Count はイベントの総件数を返す。
func (r *PostgresEventRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("イベント件数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ EventRepository = (*PostgresEventRepo)(nil)
