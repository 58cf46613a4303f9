// Package model はドメインモデルを定義する。
package model

import "time"

// Event は開催イベントを表す。
// CreatedByは作成後に変更されない。タイトル等の変更と削除は所有者のみが行える。
type Event struct {
	ID          string
	Title       string
	Description string // サニタイズ済みHTML
	Date        time.Time
	Location    string
	ImageURL    *string // オブジェクトストレージ上のバナー画像URL（任意）
	CreatedBy   string
	CreatedAt   time.Time
}

// IsOwnedBy は指定ユーザーがこのイベントの所有者かどうかを返す。
func (e *Event) IsOwnedBy(userID string) bool {
	return e.CreatedBy == userID
}
