// Package storage はオブジェクトストレージ連携機能を提供する。
// イベントのバナー画像をURLアドレス可能な外部ストレージにアップロード/削除する。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Client はオブジェクトストレージクライアントのインターフェース。
// アップロードは公開URLを返し、削除は公開URLを受け取る。
type Client interface {
	// Upload はバイナリデータをアップロードし、公開URLを返す。
	Upload(ctx context.Context, data []byte, contentType, name string) (string, error)
	// Delete は公開URLが指すオブジェクトを削除する。
	// オブジェクトが既に存在しない場合はエラーにしない（冪等）。
	Delete(ctx context.Context, publicURL string) error
}

// HTTPClientConfig はHTTPClientの設定。
type HTTPClientConfig struct {
	Endpoint      string // アップロード/削除先のエンドポイント（認証付き）
	PublicBaseURL string // 公開URL（CDN等）のベース
	AccessToken   string // Bearerトークン（空の場合はヘッダーを付与しない）
}

// HTTPClient はHTTP PUT/DELETEでオブジェクトを操作するストレージクライアント。
// タイムアウトは注入されるhttp.Clientに設定する。
type HTTPClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	config     HTTPClientConfig
}

// NewHTTPClient はHTTPClientの新しいインスタンスを生成する。
func NewHTTPClient(httpClient *http.Client, logger *slog.Logger, config HTTPClientConfig) *HTTPClient {
	return &HTTPClient{
		httpClient: httpClient,
		logger:     logger,
		config:     config,
	}
}

// Upload はバイナリデータをアップロードし、公開URLを返す。
// オブジェクトキーは "{uuid}_{name}" 形式で衝突を避ける。
func (c *HTTPClient) Upload(ctx context.Context, data []byte, contentType, name string) (string, error) {
	key := fmt.Sprintf("%s_%s", uuid.New().String(), sanitizeObjectName(name))

	reqURL := strings.TrimSuffix(c.config.Endpoint, "/") + "/" + key
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, reqURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("アップロードリクエストの作成に失敗しました: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.config.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("オブジェクトのアップロードに失敗しました",
			slog.String("error", err.Error()),
			slog.String("key", key),
		)
		return "", fmt.Errorf("オブジェクトのアップロードに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("ストレージがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("key", key),
		)
		return "", fmt.Errorf("ストレージがステータス %d を返しました", resp.StatusCode)
	}

	return strings.TrimSuffix(c.config.PublicBaseURL, "/") + "/" + key, nil
}

// Delete は公開URLが指すオブジェクトを削除する。
// 404は「既に存在しない」として成功扱いにする。
func (c *HTTPClient) Delete(ctx context.Context, publicURL string) error {
	key, err := c.keyFromPublicURL(publicURL)
	if err != nil {
		return err
	}

	reqURL := strings.TrimSuffix(c.config.Endpoint, "/") + "/" + key
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, reqURL, nil)
	if err != nil {
		return fmt.Errorf("削除リクエストの作成に失敗しました: %w", err)
	}
	if c.config.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("オブジェクトの削除に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ストレージがステータス %d を返しました", resp.StatusCode)
	}

	return nil
}

// keyFromPublicURL は公開URLからオブジェクトキーを逆算する。
func (c *HTTPClient) keyFromPublicURL(publicURL string) (string, error) {
	base := strings.TrimSuffix(c.config.PublicBaseURL, "/") + "/"
	if !strings.HasPrefix(publicURL, base) {
		return "", fmt.Errorf("公開URLがストレージのベースURLと一致しません: %s", publicURL)
	}
	key := strings.TrimPrefix(publicURL, base)
	if key == "" {
		return "", fmt.Errorf("公開URLからオブジェクトキーを取得できません: %s", publicURL)
	}
	return key, nil
}

// sanitizeObjectName はオブジェクト名をキーとして安全な形式に変換する。
// パス区切りと空白を除去し、空になった場合は固定名にフォールバックする。
func sanitizeObjectName(name string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", " ", "-")
	cleaned := replacer.Replace(name)
	cleaned = strings.Trim(cleaned, "-.")
	if cleaned == "" {
		return "image"
	}
	return cleaned
}

// compile-time interface check
var _ Client = (*HTTPClient)(nil)
