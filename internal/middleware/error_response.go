package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/eventboard/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。バリデーションエラーの場合は
// fieldsにフィールド単位のメッセージが入る。
type ErrorResponseBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Category string            `json:"category"`
	Action   string            `json:"action"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
		Fields:   apiErr.Fields,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// StatusForAPIError はエラーコードに対応するHTTPステータスコードを返す。
func StatusForAPIError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeEventNotFound:
		return http.StatusNotFound
	case model.ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeStorageUploadFailed:
		return http.StatusBadGateway
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials, model.ErrCodeSessionNotFound:
		return http.StatusUnauthorized
	case model.ErrCodeDuplicateUsername:
		return http.StatusConflict
	case model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// HandleServiceError はサービス層から返されたエラーをHTTPレスポンスに変換する。
// APIError以外のエラーは詳細をログに残し、500を返す。
func HandleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteErrorResponse(w, StatusForAPIError(apiErr), apiErr)
		return
	}

	slog.Error("unexpected service error", slog.String("error", err.Error()))
	WriteInternalServerError(w)
}
