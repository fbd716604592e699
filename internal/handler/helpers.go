// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/drainman/internal/drainapi"
	"github.com/hitoshi/drainman/internal/middleware"
	"github.com/hitoshi/drainman/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("レスポンスの書き込みに失敗しました", slog.String("error", err.Error()))
	}
}

// parseIDParam はURLパラメータから数値IDを取り出す。
func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("IDが数値ではありません")
	}
	return id, nil
}

// writeUpstreamError は上流API呼び出しのエラーを統一エラーフォーマットに変換して書き込む。
// 非2xxは*drainapi.StatusErrorとして届くので、UPSTREAM_ERRORにステータスと本文を載せる。
// それ以外のエラーはネットワーク障害として扱う。
func writeUpstreamError(w http.ResponseWriter, err error) {
	var statusErr *drainapi.StatusError
	if errors.As(err, &statusErr) {
		apiErr := model.NewUpstreamError(statusErr.StatusCode, statusErr.Body)
		middleware.WriteErrorResponse(w, http.StatusBadGateway, apiErr)
		return
	}
	middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewNetworkError())
}

// requireConfirmation は破壊的操作の確認クエリパラメータ（confirm=true）を検証する。
// 付いていない場合はCONFIRMATION_REQUIREDを書き込みfalseを返す。
func requireConfirmation(w http.ResponseWriter, r *http.Request) bool {
	if r.URL.Query().Get("confirm") != "true" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewConfirmationRequiredError())
		return false
	}
	return true
}

// requireAdmin はコンテキストのセッションが管理者であることを検証する。
// 管理者でない場合はAUTHORIZATION_DENIEDを書き込みnilを返す。
func requireAdmin(w http.ResponseWriter, r *http.Request) *model.Session {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewSessionExpiredError())
		return nil
	}
	if !session.IsAdmin() {
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewAuthorizationDeniedError())
		return nil
	}
	return session
}

// requireAdopter はコンテキストのセッションが里親であることを検証する。
func requireAdopter(w http.ResponseWriter, r *http.Request) *model.Session {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewSessionExpiredError())
		return nil
	}
	if !session.IsAdopter() {
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewAuthorizationDeniedError())
		return nil
	}
	return session
}
