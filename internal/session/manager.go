// Package session はゲートウェイ側のセッション管理を提供する。
// 上流APIのベアラートークンとユーザープロフィールをセッション行として
// 一括で保存・破棄し、ブラウザにはHttpOnlyクッキーのセッションIDのみを渡す。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/drainman/internal/drainapi"
	"github.com/hitoshi/drainman/internal/model"
	"github.com/hitoshi/drainman/internal/repository"
)

// UpstreamAuth は上流APIの認証操作のインターフェース。
type UpstreamAuth interface {
	// Login はメールアドレスとパスワードで上流APIにログインする。
	Login(ctx context.Context, email, password string) (*model.AuthResponse, error)
	// Register は上流APIに新規ユーザーを登録する。
	Register(ctx context.Context, name, email, password string, role model.Role) (*model.AuthResponse, error)
}

// ManagerConfig はセッションマネージャの設定。
type ManagerConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Manager はセッションのライフサイクルを管理する。
type Manager struct {
	api    UpstreamAuth
	repo   repository.SessionRepository
	config ManagerConfig
}

// NewManager はManagerを生成する。
func NewManager(api UpstreamAuth, repo repository.SessionRepository, config ManagerConfig) *Manager {
	return &Manager{
		api:    api,
		repo:   repo,
		config: config,
	}
}

// Login は上流APIにログインし、成功時のみセッションを発行する。
// 認証失敗時は上流のメッセージを保持したAPIErrorを返し、セッション行は一切書き込まない。
func (m *Manager) Login(ctx context.Context, email, password string) (*model.Session, error) {
	auth, err := m.api.Login(ctx, email, password)
	if err != nil {
		var statusErr *drainapi.StatusError
		if errors.As(err, &statusErr) {
			slog.Info("login rejected by upstream",
				slog.Int("status", statusErr.StatusCode),
			)
			return nil, model.NewAuthFailedError(statusErr.Body)
		}
		slog.Error("login request failed", slog.String("error", err.Error()))
		return nil, model.NewNetworkError()
	}

	session, err := m.createSession(ctx, auth)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in",
		slog.Int64("user_id", auth.UserID),
		slog.String("role", string(auth.Role)),
	)
	return session, nil
}

// Register は上流APIに新規登録し、成功時のみセッションを発行する。
// 登録失敗時は上流のメッセージを保持したAPIErrorを返し、セッション行は一切書き込まない。
func (m *Manager) Register(ctx context.Context, name, email, password string, role model.Role) (*model.Session, error) {
	auth, err := m.api.Register(ctx, name, email, password, role)
	if err != nil {
		var statusErr *drainapi.StatusError
		if errors.As(err, &statusErr) {
			slog.Info("registration rejected by upstream",
				slog.Int("status", statusErr.StatusCode),
			)
			return nil, model.NewRegistrationFailedError(statusErr.Body)
		}
		slog.Error("registration request failed", slog.String("error", err.Error()))
		return nil, model.NewNetworkError()
	}

	session, err := m.createSession(ctx, auth)
	if err != nil {
		return nil, err
	}

	slog.Info("user registered",
		slog.Int64("user_id", auth.UserID),
		slog.String("role", string(auth.Role)),
	)
	return session, nil
}

// Logout はセッションを破棄する。セッションが存在しなくてもエラーにしない。
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := m.repo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// Token はセッションIDに対応する永続化済みトークンを返す。
// ストレージを1回読むだけで、上流APIへのリクエストは発生しない。
// 見つからない・期限切れの場合は空文字列を返す。
func (m *Manager) Token(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", nil
	}

	stored, err := m.repo.FindByID(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to find session: %w", err)
	}
	if stored == nil {
		return "", nil
	}

	return stored.Token, nil
}

// Current はセッションIDから現在のセッションを復元する。
// 見つからない・期限切れ・プロフィールが壊れている場合はいずれも(nil, nil)を返す。
// 壊れたプロフィールを持つ行は発見時に削除し、未認証として扱う。
func (m *Manager) Current(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	stored, err := m.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if stored == nil {
		return nil, nil
	}

	var profile model.Profile
	if err := json.Unmarshal(stored.Profile, &profile); err != nil {
		// 壊れたプロフィールは認証済みとして扱わない
		slog.Warn("discarding session with malformed profile",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		if delErr := m.repo.DeleteByID(ctx, sessionID); delErr != nil {
			slog.Error("failed to delete malformed session",
				slog.String("session_id", sessionID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, nil
	}

	return &model.Session{
		ID:        stored.ID,
		Token:     stored.Token,
		Profile:   profile,
		CreatedAt: stored.CreatedAt,
		ExpiresAt: stored.ExpiresAt,
	}, nil
}

// createSession は認証結果からセッションを作成し永続化する。
// トークンとプロフィールは同一行に書き込むため、片方だけ保存される状態はない。
func (m *Manager) createSession(ctx context.Context, auth *model.AuthResponse) (*model.Session, error) {
	profile := auth.Profile()

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile: %w", err)
	}

	now := time.Now()
	stored := &model.StoredSession{
		ID:        uuid.New().String(),
		Token:     auth.Token,
		Profile:   profileJSON,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(m.config.SessionMaxAge) * time.Second),
	}

	if err := m.repo.Create(ctx, stored); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return &model.Session{
		ID:        stored.ID,
		Token:     stored.Token,
		Profile:   profile,
		CreatedAt: stored.CreatedAt,
		ExpiresAt: stored.ExpiresAt,
	}, nil
}
