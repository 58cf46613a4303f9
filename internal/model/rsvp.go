// Package model はドメインモデルを定義する。
package model

import "time"

// RSVP はユーザーのイベント参加表明を表す。
// レコードの存在自体が「参加」状態を意味し、更新操作は存在しない。
// (UserID, EventID)ペアの一意性はDBの一意制約で保証される。
type RSVP struct {
	ID        string
	UserID    string
	EventID   string
	CreatedAt time.Time
}
