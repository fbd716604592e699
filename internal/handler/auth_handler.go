package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/drainman/internal/middleware"
	"github.com/hitoshi/drainman/internal/model"
)

// SessionServiceInterface は認証ハンドラーが必要とするセッション管理インターフェース。
type SessionServiceInterface interface {
	// Login は上流APIで認証し、新しいセッションを作成する。
	Login(ctx context.Context, email, password string) (*model.Session, error)
	// Register は上流APIでアカウント登録し、新しいセッションを作成する。
	Register(ctx context.Context, name, email, password string, role model.Role) (*model.Session, error)
	// Logout はセッションを削除する。存在しないIDでもエラーにしない。
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieSecure  bool
	CookieDomain  string
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service SessionServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service SessionServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// registerRequest はアカウント登録リクエストのボディ。
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// profileResponse は認証済みユーザー情報のAPIレスポンス。
type profileResponse struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

func toProfileResponse(profile model.Profile) profileResponse {
	return profileResponse{
		UserID: profile.UserID,
		Email:  profile.Email,
		Name:   profile.Name,
		Role:   string(profile.Role),
	}
}

// Login はログインを処理する。
// POST /api/auth/login
//
// 成功時はHttpOnlyのセッションCookieを設定し、プロフィールを返す。
// 失敗時は上流APIのエラーメッセージをそのまま伝える。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	if req.Email == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("メールアドレスとパスワードを入力してください"))
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	h.setSessionCookie(w, session.ID)
	writeJSON(w, http.StatusOK, toProfileResponse(session.Profile))
}

// Register はアカウント登録を処理する。
// POST /api/auth/register
//
// 登録成功は即ログイン扱いとなり、セッションCookieを設定する。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	if req.Name == "" || req.Email == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("名前、メールアドレス、パスワードを入力してください"))
		return
	}

	role := model.Role(req.Role)
	if role != model.RoleAdmin && role != model.RoleAdopter {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("役割はADMINまたはADOPTERを指定してください"))
		return
	}

	session, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password, role)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	h.setSessionCookie(w, session.ID)
	writeJSON(w, http.StatusCreated, toProfileResponse(session.Profile))
}

// Logout はログアウトを処理する。
// POST /api/auth/logout
//
// セッションレコードの削除とCookieの無効化を行う。
// Cookieが無い・セッションが既に消えている場合でも成功として扱う。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := ""
	if cookie, err := r.Cookie(middleware.SessionCookieName()); err == nil {
		sessionID = cookie.Value
	}

	if err := h.service.Logout(r.Context(), sessionID); err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログイン状態を返す。
// GET /api/auth/me
//
// セッションミドルウェア（必須）の後段で動く前提。
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewSessionExpiredError())
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(session.Profile))
}

// writeAuthError はセッション管理層のエラーをHTTPレスポンスに変換する。
// AUTH_FAILED / REGISTRATION_FAILED は401、NETWORK_ERRORは502にマップする。
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		middleware.WriteInternalServerError(w)
		return
	}

	switch apiErr.Code {
	case model.ErrCodeAuthFailed:
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
	case model.ErrCodeRegistrationFailed:
		middleware.WriteErrorResponse(w, http.StatusConflict, apiErr)
	case model.ErrCodeNetwork:
		middleware.WriteErrorResponse(w, http.StatusBadGateway, apiErr)
	default:
		middleware.WriteInternalServerError(w)
	}
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName(),
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName(),
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
