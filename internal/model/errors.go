// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// バリデーションエラーの場合はFieldsにフィールド単位のメッセージを保持する。
type APIError struct {
	Code     string            // エラーコード
	Message  string            // エラーメッセージ
	Category string            // カテゴリ: auth, validation, event, storage, system
	Action   string            // ユーザー向け対処方法
	Fields   map[string]string // フィールド単位のバリデーションメッセージ（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeEventNotFound       = "EVENT_NOT_FOUND"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeStorageUploadFailed = "STORAGE_UPLOAD_FAILED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeDuplicateUsername   = "DUPLICATE_USERNAME"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeSessionNotFound     = "SESSION_NOT_FOUND"
)

// ErrRSVPExists は(user, event)ペアのRSVPが既に存在することを表すセンチネルエラー。
// リポジトリ層がDBの一意制約違反をこのエラーに変換し、
// トグルサービスが「既に参加済み」として解決する。呼び出し元には伝播しない。
var ErrRSVPExists = errors.New("rsvp already exists for this user and event")

// NewEventNotFoundError はイベント未検出エラーを生成する。
// 所有者以外による更新/削除も存在を漏らさないよう同じエラーに畳み込む。
func NewEventNotFoundError(eventID string) *APIError {
	return &APIError{
		Code:     ErrCodeEventNotFound,
		Message:  fmt.Sprintf("指定されたイベントが見つかりません: %s", eventID),
		Category: "event",
		Action:   "イベント一覧から存在するイベントを選択してください。",
	}
}

// NewValidationError はフィールド単位のメッセージを持つバリデーションエラーを生成する。
func NewValidationError(fields map[string]string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "入力内容に誤りがあります。",
		Category: "validation",
		Action:   "各フィールドのエラーメッセージを確認し、修正して再送信してください。",
		Fields:   fields,
	}
}

// NewStorageUploadError は画像アップロード失敗エラーを生成する。
// アップロードに失敗した場合、イベントは一切永続化されない。
func NewStorageUploadError() *APIError {
	return &APIError{
		Code:     ErrCodeStorageUploadFailed,
		Message:  "画像のアップロードに失敗しました。イベントは保存されていません。",
		Category: "storage",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// ユーザー名の存在有無を漏らさないよう、原因によらず同一のエラーを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewDuplicateUsernameError はユーザー名重複エラーを生成する。
func NewDuplicateUsernameError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUsername,
		Message:  fmt.Sprintf("このユーザー名は既に使用されています: %s", username),
		Category: "auth",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストの形式が不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストの内容を確認してください。",
	}
}

// NewSessionNotFoundError はセッション未検出エラーを生成する。
func NewSessionNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  "セッションが無効または期限切れです。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
