package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/drainman/internal/middleware"
	"github.com/hitoshi/drainman/internal/model"
)

// --- テストヘルパー ---

// adminSession はテスト用の管理者セッションを返す。
func adminSession() *model.Session {
	return &model.Session{
		ID:    "admin-session",
		Token: "admin-token",
		Profile: model.Profile{
			UserID: 100,
			Email:  "admin@example.com",
			Name:   "管理者",
			Role:   model.RoleAdmin,
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

// adopterSession はテスト用の里親セッションを返す。
func adopterSession() *model.Session {
	return &model.Session{
		ID:    "adopter-session",
		Token: "adopter-token",
		Profile: model.Profile{
			UserID: 200,
			Email:  "adopter@example.com",
			Name:   "里親",
			Role:   model.RoleAdopter,
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

// withSession はテスト用にリクエストコンテキストにセッションを注入するヘルパー。
func withSession(r *http.Request, session *model.Session) *http.Request {
	ctx := middleware.ContextWithSession(r.Context(), session)
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("エラーレスポンスのデコードに失敗: %v", err)
	}
	return result
}

// decodeJSONBody はレスポンスボディを指定の型にデコードするヘルパー。
func decodeJSONBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}
