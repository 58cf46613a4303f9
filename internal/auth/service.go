// Package auth はユーザー登録、ログイン、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/eventboard/internal/model"
	"github.com/hitoshi/eventboard/internal/repository"
)

const (
	// usernameMaxLength はユーザー名の最大長。usersテーブルのカラム定義と揃える。
	usernameMaxLength = 150
	// passwordMinLength はパスワードの最小長。
	passwordMinLength = 8
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// Register は新規ユーザーを登録し、セッションを発行する（登録後の自動ログイン）。
// ユーザー名が既に使用されている場合はDUPLICATE_USERNAMEエラーを返す。
func (s *Service) Register(ctx context.Context, username, password string) (*model.User, *model.Session, error) {
	if fields := validateCredentials(username, password); len(fields) > 0 {
		return nil, nil, model.NewValidationError(fields)
	}

	existing, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("ユーザー名の重複確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, nil, model.NewDuplicateUsernameError(username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("パスワードハッシュの生成に失敗しました: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("username", username),
	)

	return user, session, nil
}

// Login はユーザー名とパスワードを検証し、セッションを発行する。
// ユーザーが存在しない場合とパスワードが一致しない場合は同一のエラーを返す
// （ユーザー名の存在有無を漏らさないため）。
func (s *Service) Login(ctx context.Context, username, password string) (*model.User, *model.Session, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
	)

	return user, session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// CurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewSessionNotFoundError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewSessionNotFoundError()
	}

	return user, nil
}

// validateCredentials は登録時のユーザー名とパスワードを検証する。
func validateCredentials(username, password string) map[string]string {
	fields := make(map[string]string)
	if username == "" {
		fields["username"] = "ユーザー名は必須です。"
	} else if utf8.RuneCountInString(username) > usernameMaxLength {
		fields["username"] = fmt.Sprintf("ユーザー名は%d文字以内で指定してください。", usernameMaxLength)
	}
	if len(password) < passwordMinLength {
		fields["password"] = fmt.Sprintf("パスワードは%d文字以上で指定してください。", passwordMinLength)
	}
	return fields
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
