package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testCSRFConfig() CSRFConfig {
	return CSRFConfig{CookieSecure: false, CookieDomain: ""}
}

// TestCSRFMiddleware_SafeMethod_SkipsValidation はGETリクエストが検証なしで通過することを検証する。
func TestCSRFMiddleware_SafeMethod_SkipsValidation(t *testing.T) {
	handler := NewCSRFMiddleware(testCSRFConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/drains", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestCSRFMiddleware_SafeMethod_SetsCookie はGETリクエストでCSRFトークンCookieが
// 設定されることを検証する。
func TestCSRFMiddleware_SafeMethod_SetsCookie(t *testing.T) {
	handler := NewCSRFMiddleware(testCSRFConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/drains", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName && c.Value != "" {
			found = true
			if c.HttpOnly {
				t.Error("CSRFトークンCookieはフロントエンドから読み取れる必要がある")
			}
		}
	}
	if !found {
		t.Error("CSRFトークンCookieが設定されていない")
	}
}

// TestCSRFMiddleware_Mutation_MissingToken_Returns403 はトークンなしの状態変更が
// 403になることを検証する。
func TestCSRFMiddleware_Mutation_MissingToken_Returns403(t *testing.T) {
	handler := NewCSRFMiddleware(testCSRFConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("トークンなしの状態変更がハンドラーに到達した")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/drains/1/adopt", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

// TestCSRFMiddleware_Mutation_TokenMismatch_Returns403 はCookieとヘッダーの不一致が
// 403になることを検証する。
func TestCSRFMiddleware_Mutation_TokenMismatch_Returns403(t *testing.T) {
	handler := NewCSRFMiddleware(testCSRFConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("不一致トークンの状態変更がハンドラーに到達した")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/drains/1/adopt", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "cookie-token"})
	req.Header.Set(csrfHeaderName, "different-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

// TestCSRFMiddleware_Mutation_ValidToken_Passes は一致するトークンの状態変更が
// 通過することを検証する。
func TestCSRFMiddleware_Mutation_ValidToken_Passes(t *testing.T) {
	handler := NewCSRFMiddleware(testCSRFConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/drains/1/adopt", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "matching-token"})
	req.Header.Set(csrfHeaderName, "matching-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestCSRFTokenHandler_GeneratesToken はトークン取得エンドポイントが新規トークンを
// 返すことを検証する。
func TestCSRFTokenHandler_GeneratesToken(t *testing.T) {
	handler := NewCSRFTokenHandler(testCSRFConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if body["token"] == "" {
		t.Error("トークンが空")
	}
}

// TestCSRFTokenHandler_ReusesExistingToken は既存Cookieのトークンが再利用されることを検証する。
func TestCSRFTokenHandler_ReusesExistingToken(t *testing.T) {
	handler := NewCSRFTokenHandler(testCSRFConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if body["token"] != "existing-token" {
		t.Errorf("token = %q, want %q", body["token"], "existing-token")
	}
}
