package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session
	SessionSecret string
	SessionMaxAge int

	// Storage
	StorageEndpoint      string
	StoragePublicBaseURL string
	StorageAccessToken   string
	StorageTimeout       time.Duration

	// Events
	PageSize     int
	ImageMaxSize int64

	// Rate Limit（req/min/user）
	RateLimitGeneral     int
	RateLimitEventCreate int

	// Session Cleanup
	SessionCleanupInterval time.Duration

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envファイルがある場合は先に読み込む（既存の環境変数を優先）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envは開発環境向けの補助。存在しない場合は無視する。
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.StorageEndpoint = os.Getenv("STORAGE_ENDPOINT")
	if cfg.StorageEndpoint == "" {
		missing = append(missing, "STORAGE_ENDPOINT")
	}

	cfg.StoragePublicBaseURL = os.Getenv("STORAGE_PUBLIC_BASE_URL")
	if cfg.StoragePublicBaseURL == "" {
		missing = append(missing, "STORAGE_PUBLIC_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.StorageAccessToken = getEnvString("STORAGE_ACCESS_TOKEN", "")
	cfg.StorageTimeout = getEnvDuration("STORAGE_TIMEOUT", 10*time.Second)
	cfg.PageSize = getEnvInt("PAGE_SIZE", 5)
	cfg.ImageMaxSize = getEnvInt64("IMAGE_MAX_SIZE", 5242880)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitEventCreate = getEnvInt("RATE_LIMIT_EVENT_CREATE", 10)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", 1*time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
