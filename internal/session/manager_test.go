package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/hitoshi/drainman/internal/drainapi"
	"github.com/hitoshi/drainman/internal/model"
	"github.com/hitoshi/drainman/internal/repository"
)

// --- モック定義 ---

type mockUpstreamAuth struct {
	loginFn    func(ctx context.Context, email, password string) (*model.AuthResponse, error)
	registerFn func(ctx context.Context, name, email, password string, role model.Role) (*model.AuthResponse, error)
}

func (m *mockUpstreamAuth) Login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockUpstreamAuth) Register(ctx context.Context, name, email, password string, role model.Role) (*model.AuthResponse, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, name, email, password, role)
	}
	return nil, nil
}

type mockSessionRepo struct {
	createFn        func(ctx context.Context, session *model.StoredSession) error
	findByIDFn      func(ctx context.Context, id string) (*model.StoredSession, error)
	deleteByIDFn    func(ctx context.Context, id string) error
	deleteExpiredFn func(ctx context.Context) (int64, error)
	listActiveFn    func(ctx context.Context) ([]*model.StoredSession, error)
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.StoredSession) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.StoredSession, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return 0, nil
}

func (m *mockSessionRepo) ListActive(ctx context.Context) ([]*model.StoredSession, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return nil, nil
}

// --- compile-time interface checks ---
var _ UpstreamAuth = (*mockUpstreamAuth)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)

func testAuthResponse() *model.AuthResponse {
	return &model.AuthResponse{
		Token:  "bearer-token",
		UserID: 42,
		Email:  "adopter@example.com",
		Name:   "里親太郎",
		Role:   model.RoleAdopter,
	}
}

// --- テスト ---

func TestLogin_Success_PersistsTokenAndProfileTogether(t *testing.T) {
	ctx := context.Background()

	var createdSession *model.StoredSession
	api := &mockUpstreamAuth{
		loginFn: func(ctx context.Context, email, password string) (*model.AuthResponse, error) {
			return testAuthResponse(), nil
		},
	}
	repo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.StoredSession) error {
			createdSession = session
			return nil
		},
	}
	m := NewManager(api, repo, ManagerConfig{SessionMaxAge: 86400})

	session, err := m.Login(ctx, "adopter@example.com", "secret")
	if err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}

	if createdSession == nil {
		t.Fatal("セッションが永続化されていない")
	}
	// トークンとプロフィールは同一行として書き込まれる
	if createdSession.Token != "bearer-token" {
		t.Errorf("createdSession.Token = %q, want %q", createdSession.Token, "bearer-token")
	}
	var profile model.Profile
	if err := json.Unmarshal(createdSession.Profile, &profile); err != nil {
		t.Fatalf("永続化されたプロフィールが不正なJSON: %v", err)
	}
	if profile.UserID != 42 || profile.Role != model.RoleAdopter {
		t.Errorf("profile = %+v", profile)
	}

	if session.ID == "" {
		t.Error("セッションIDが空")
	}
	if session.Token != "bearer-token" {
		t.Errorf("session.Token = %q", session.Token)
	}
	if !session.IsAdopter() {
		t.Error("ADOPTERロールのセッションがIsAdopter()=falseを返した")
	}
}

func TestLogin_UpstreamRejection_PreservesMessageAndWritesNothing(t *testing.T) {
	ctx := context.Background()

	created := false
	api := &mockUpstreamAuth{
		loginFn: func(ctx context.Context, email, password string) (*model.AuthResponse, error) {
			return nil, &drainapi.StatusError{
				StatusCode: http.StatusUnauthorized,
				Body:       "Invalid email or password",
			}
		},
	}
	repo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.StoredSession) error {
			created = true
			return nil
		},
	}
	m := NewManager(api, repo, ManagerConfig{SessionMaxAge: 86400})

	_, err := m.Login(ctx, "x@example.com", "wrong")
	if err == nil {
		t.Fatal("認証失敗でエラーが返らない")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("*model.APIError ではない: %T", err)
	}
	if apiErr.Code != model.ErrCodeAuthFailed {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeAuthFailed)
	}
	if apiErr.Message != "Invalid email or password" {
		t.Errorf("上流メッセージが保持されていない: %q", apiErr.Message)
	}
	if created {
		t.Error("認証失敗時にセッション行が書き込まれた")
	}
}

func TestLogin_NetworkFailure_ReturnsNetworkError(t *testing.T) {
	ctx := context.Background()

	api := &mockUpstreamAuth{
		loginFn: func(ctx context.Context, email, password string) (*model.AuthResponse, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}
	m := NewManager(api, &mockSessionRepo{}, ManagerConfig{SessionMaxAge: 86400})

	_, err := m.Login(ctx, "x@example.com", "pw")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("*model.APIError ではない: %T", err)
	}
	if apiErr.Code != model.ErrCodeNetwork {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeNetwork)
	}
}

func TestRegister_Success_CreatesSession(t *testing.T) {
	ctx := context.Background()

	var gotRole model.Role
	api := &mockUpstreamAuth{
		registerFn: func(ctx context.Context, name, email, password string, role model.Role) (*model.AuthResponse, error) {
			gotRole = role
			resp := testAuthResponse()
			resp.Role = role
			return resp, nil
		},
	}
	var created *model.StoredSession
	repo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.StoredSession) error {
			created = session
			return nil
		},
	}
	m := NewManager(api, repo, ManagerConfig{SessionMaxAge: 86400})

	session, err := m.Register(ctx, "里親太郎", "adopter@example.com", "secret", model.RoleAdopter)
	if err != nil {
		t.Fatalf("Register がエラーを返した: %v", err)
	}
	if gotRole != model.RoleAdopter {
		t.Errorf("上流に渡されたロール = %q, want %q", gotRole, model.RoleAdopter)
	}
	if created == nil {
		t.Fatal("セッションが永続化されていない")
	}
	if session.Profile.Role != model.RoleAdopter {
		t.Errorf("session.Profile.Role = %q", session.Profile.Role)
	}
}

func TestRegister_UpstreamRejection_ReturnsRegistrationFailed(t *testing.T) {
	ctx := context.Background()

	api := &mockUpstreamAuth{
		registerFn: func(ctx context.Context, name, email, password string, role model.Role) (*model.AuthResponse, error) {
			return nil, &drainapi.StatusError{
				StatusCode: http.StatusBadRequest,
				Body:       "Email already registered",
			}
		},
	}
	m := NewManager(api, &mockSessionRepo{}, ManagerConfig{SessionMaxAge: 86400})

	_, err := m.Register(ctx, "n", "dup@example.com", "pw", model.RoleAdopter)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("*model.APIError ではない: %T", err)
	}
	if apiErr.Code != model.ErrCodeRegistrationFailed {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeRegistrationFailed)
	}
	if apiErr.Message != "Email already registered" {
		t.Errorf("上流メッセージが保持されていない: %q", apiErr.Message)
	}
}

func TestLogout_DeletesSession(t *testing.T) {
	ctx := context.Background()

	var deletedID string
	repo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	m := NewManager(&mockUpstreamAuth{}, repo, ManagerConfig{SessionMaxAge: 86400})

	if err := m.Logout(ctx, "session-1"); err != nil {
		t.Fatalf("Logout がエラーを返した: %v", err)
	}
	if deletedID != "session-1" {
		t.Errorf("deletedID = %q, want %q", deletedID, "session-1")
	}
}

func TestLogout_EmptySessionID_IsNoop(t *testing.T) {
	ctx := context.Background()

	deleted := false
	repo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deleted = true
			return nil
		},
	}
	m := NewManager(&mockUpstreamAuth{}, repo, ManagerConfig{SessionMaxAge: 86400})

	if err := m.Logout(ctx, ""); err != nil {
		t.Fatalf("空IDのLogoutがエラーを返した: %v", err)
	}
	if deleted {
		t.Error("空IDで削除クエリが発行された")
	}
}

func TestToken_ReturnsPersistedToken(t *testing.T) {
	ctx := context.Background()

	repo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.StoredSession, error) {
			return &model.StoredSession{ID: id, Token: "bearer-token"}, nil
		},
	}
	m := NewManager(&mockUpstreamAuth{}, repo, ManagerConfig{SessionMaxAge: 86400})

	token, err := m.Token(ctx, "session-1")
	if err != nil {
		t.Fatalf("Token がエラーを返した: %v", err)
	}
	if token != "bearer-token" {
		t.Errorf("token = %q, want %q", token, "bearer-token")
	}
}

func TestToken_NotFoundOrEmptyID_ReturnsEmpty(t *testing.T) {
	ctx := context.Background()

	m := NewManager(&mockUpstreamAuth{}, &mockSessionRepo{}, ManagerConfig{SessionMaxAge: 86400})

	for _, id := range []string{"missing", ""} {
		token, err := m.Token(ctx, id)
		if err != nil {
			t.Fatalf("Token(%q) がエラーを返した: %v", id, err)
		}
		if token != "" {
			t.Errorf("Token(%q) = %q, want 空文字列", id, token)
		}
	}
}

func TestToken_AbsentAfterLogout(t *testing.T) {
	ctx := context.Background()

	// 削除を実際に反映するインメモリのストア
	store := map[string]*model.StoredSession{
		"session-1": {ID: "session-1", Token: "bearer-token"},
	}
	repo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.StoredSession, error) {
			return store[id], nil
		},
		deleteByIDFn: func(ctx context.Context, id string) error {
			delete(store, id)
			return nil
		},
	}
	m := NewManager(&mockUpstreamAuth{}, repo, ManagerConfig{SessionMaxAge: 86400})

	token, err := m.Token(ctx, "session-1")
	if err != nil || token != "bearer-token" {
		t.Fatalf("ログアウト前のToken = %q, err = %v", token, err)
	}

	if err := m.Logout(ctx, "session-1"); err != nil {
		t.Fatalf("Logout がエラーを返した: %v", err)
	}

	token, err = m.Token(ctx, "session-1")
	if err != nil {
		t.Fatalf("ログアウト後のToken がエラーを返した: %v", err)
	}
	if token != "" {
		t.Errorf("ログアウト後のtoken = %q, want 空文字列", token)
	}
}

func TestCurrent_RestoresSession(t *testing.T) {
	ctx := context.Background()

	now := time.Now()
	profile, _ := json.Marshal(model.Profile{
		UserID: 1, Email: "admin@example.com", Name: "管理者", Role: model.RoleAdmin,
	})
	repo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.StoredSession, error) {
			return &model.StoredSession{
				ID:        id,
				Token:     "admin-token",
				Profile:   profile,
				CreatedAt: now,
				ExpiresAt: now.Add(time.Hour),
			}, nil
		},
	}
	m := NewManager(&mockUpstreamAuth{}, repo, ManagerConfig{SessionMaxAge: 86400})

	session, err := m.Current(ctx, "session-1")
	if err != nil {
		t.Fatalf("Current がエラーを返した: %v", err)
	}
	if session == nil {
		t.Fatal("セッションが復元されない")
	}
	if session.Token != "admin-token" {
		t.Errorf("session.Token = %q", session.Token)
	}
	if !session.IsAdmin() {
		t.Error("ADMINロールのセッションがIsAdmin()=falseを返した")
	}
}

func TestCurrent_NotFound_ReturnsNil(t *testing.T) {
	ctx := context.Background()

	m := NewManager(&mockUpstreamAuth{}, &mockSessionRepo{}, ManagerConfig{SessionMaxAge: 86400})

	session, err := m.Current(ctx, "missing")
	if err != nil {
		t.Fatalf("Current がエラーを返した: %v", err)
	}
	if session != nil {
		t.Errorf("session = %+v, want nil", session)
	}
}

func TestCurrent_EmptySessionID_ReturnsNil(t *testing.T) {
	ctx := context.Background()

	m := NewManager(&mockUpstreamAuth{}, &mockSessionRepo{}, ManagerConfig{SessionMaxAge: 86400})

	session, err := m.Current(ctx, "")
	if err != nil {
		t.Fatalf("Current がエラーを返した: %v", err)
	}
	if session != nil {
		t.Error("空IDでセッションが返った")
	}
}

func TestCurrent_MalformedProfile_FailsClosed(t *testing.T) {
	ctx := context.Background()

	var deletedID string
	repo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.StoredSession, error) {
			return &model.StoredSession{
				ID:      id,
				Token:   "token",
				Profile: []byte(`not-json`),
			}, nil
		},
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	m := NewManager(&mockUpstreamAuth{}, repo, ManagerConfig{SessionMaxAge: 86400})

	session, err := m.Current(ctx, "broken-1")
	if err != nil {
		t.Fatalf("壊れたプロフィールはエラーではなく未認証として扱うべき: %v", err)
	}
	if session != nil {
		t.Error("壊れたプロフィールのセッションが認証済みとして返った")
	}
	// 壊れた行は発見時に破棄される
	if deletedID != "broken-1" {
		t.Errorf("deletedID = %q, want %q", deletedID, "broken-1")
	}
}

func TestCurrent_ExpiresAtPropagated(t *testing.T) {
	ctx := context.Background()

	expires := time.Now().Add(30 * time.Minute)
	profile, _ := json.Marshal(model.Profile{UserID: 1, Role: model.RoleAdopter})
	repo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.StoredSession, error) {
			return &model.StoredSession{ID: id, Token: "t", Profile: profile, ExpiresAt: expires}, nil
		},
	}
	m := NewManager(&mockUpstreamAuth{}, repo, ManagerConfig{SessionMaxAge: 86400})

	session, err := m.Current(ctx, "session-1")
	if err != nil {
		t.Fatalf("Current がエラーを返した: %v", err)
	}
	if !session.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, expires)
	}
}
