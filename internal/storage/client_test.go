package storage

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(serverURL string) *HTTPClient {
	return NewHTTPClient(
		&http.Client{Timeout: 5 * time.Second},
		testLogger(),
		HTTPClientConfig{
			Endpoint:      serverURL + "/bucket",
			PublicBaseURL: "https://cdn.example.com/bucket",
			AccessToken:   "test-token",
		},
	)
}

// Uploadが成功時に公開URLを返し、リクエストにボディとヘッダーが正しく載ることを検証
func TestHTTPClient_Upload_Success(t *testing.T) {
	var gotMethod, gotPath, gotContentType, gotAuth string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	url, err := client.Upload(context.Background(), []byte("image-bytes"), "image/png", "banner.png")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want %q", gotMethod, http.MethodPut)
	}
	if !strings.HasPrefix(gotPath, "/bucket/") {
		t.Errorf("path = %q, want prefix %q", gotPath, "/bucket/")
	}
	if !strings.HasSuffix(gotPath, "_banner.png") {
		t.Errorf("path = %q, want suffix %q", gotPath, "_banner.png")
	}
	if gotContentType != "image/png" {
		t.Errorf("Content-Type = %q, want %q", gotContentType, "image/png")
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-token")
	}
	if string(gotBody) != "image-bytes" {
		t.Errorf("body = %q, want %q", gotBody, "image-bytes")
	}

	if !strings.HasPrefix(url, "https://cdn.example.com/bucket/") {
		t.Errorf("url = %q, want prefix %q", url, "https://cdn.example.com/bucket/")
	}
	if !strings.HasSuffix(url, "_banner.png") {
		t.Errorf("url = %q, want suffix %q", url, "_banner.png")
	}
}

// 連続アップロードでキーが衝突しないことを検証
func TestHTTPClient_Upload_UniqueKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	url1, err := client.Upload(context.Background(), []byte("a"), "image/png", "banner.png")
	if err != nil {
		t.Fatalf("first upload failed: %v", err)
	}
	url2, err := client.Upload(context.Background(), []byte("b"), "image/png", "banner.png")
	if err != nil {
		t.Fatalf("second upload failed: %v", err)
	}
	if url1 == url2 {
		t.Errorf("expected distinct URLs, got %q twice", url1)
	}
}

// ストレージがエラーステータスを返した場合にUploadが失敗することを検証
func TestHTTPClient_Upload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Upload(context.Background(), []byte("image-bytes"), "image/png", "banner.png")
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}

// Deleteが公開URLからキーを逆算してDELETEリクエストを送ることを検証
func TestHTTPClient_Delete_Success(t *testing.T) {
	var gotMethod, gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.Delete(context.Background(), "https://cdn.example.com/bucket/abc_banner.png")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if gotMethod != http.MethodDelete {
		t.Errorf("method = %q, want %q", gotMethod, http.MethodDelete)
	}
	if gotPath != "/bucket/abc_banner.png" {
		t.Errorf("path = %q, want %q", gotPath, "/bucket/abc_banner.png")
	}
}

// 存在しないオブジェクト（404）の削除が成功扱いになることを検証（冪等）
func TestHTTPClient_Delete_NotFoundIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	if err := client.Delete(context.Background(), "https://cdn.example.com/bucket/missing.png"); err != nil {
		t.Fatalf("expected 404 to be treated as success, got %v", err)
	}
}

// ベースURLと一致しない公開URLの削除がエラーになることを検証
func TestHTTPClient_Delete_ForeignURL(t *testing.T) {
	client := newTestClient("http://storage.local")

	if err := client.Delete(context.Background(), "https://other.example.com/file.png"); err == nil {
		t.Fatal("expected error for URL outside the public base")
	}
}

func TestSanitizeObjectName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "banner.png", "banner.png"},
		{"path separators", "a/b\\c.png", "a-b-c.png"},
		{"spaces", "my banner.png", "my-banner.png"},
		{"empty", "", "image"},
		{"only separators", "///", "image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeObjectName(tt.input); got != tt.want {
				t.Errorf("sanitizeObjectName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
