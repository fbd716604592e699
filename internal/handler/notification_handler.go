package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/drainman/internal/middleware"
	"github.com/hitoshi/drainman/internal/model"
	"github.com/hitoshi/drainman/internal/worker/poll"
)

// NotificationAPIInterface は通知ハンドラーが必要とする上流APIインターフェース。
type NotificationAPIInterface interface {
	ListNotifications(ctx context.Context, token string) ([]model.Notification, error)
	UnreadCount(ctx context.Context, token string) (int64, error)
	MarkNotificationRead(ctx context.Context, token string, id int64) error
	MarkAllNotificationsRead(ctx context.Context, token string) error
}

// UnreadCountCache はポーリングワーカーが更新する未読数キャッシュの読み取りインターフェース。
type UnreadCountCache interface {
	Get(sessionID string) (poll.Entry, bool)
	Set(sessionID string, count int64)
}

// NotificationHandler は管理者向け通知のHTTPハンドラー。
// すべての操作で管理者チェックを上流API呼び出しより先に行う。
type NotificationHandler struct {
	api   NotificationAPIInterface
	cache UnreadCountCache
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(api NotificationAPIInterface, cache UnreadCountCache) *NotificationHandler {
	return &NotificationHandler{
		api:   api,
		cache: cache,
	}
}

// notificationResponse は通知のAPIレスポンス。
type notificationResponse struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	DrainID   int64     `json:"drainId"`
	UserID    int64     `json:"userId"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// notificationListResponse は通知一覧のAPIレスポンス。
type notificationListResponse struct {
	Notifications []notificationResponse `json:"notifications"`
}

// unreadCountResponse は未読通知数のAPIレスポンス。
type unreadCountResponse struct {
	Count int64 `json:"count"`
}

func toNotificationListResponse(notifications []model.Notification) notificationListResponse {
	resp := notificationListResponse{Notifications: make([]notificationResponse, 0, len(notifications))}
	for _, n := range notifications {
		resp.Notifications = append(resp.Notifications, notificationResponse{
			ID:        n.ID,
			Type:      string(n.Type),
			Message:   n.Message,
			DrainID:   n.DrainID,
			UserID:    n.UserID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return resp
}

// ListNotifications は通知一覧を返す。
// GET /api/notifications
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	session := requireAdmin(w, r)
	if session == nil {
		return
	}

	notifications, err := h.api.ListNotifications(r.Context(), session.Token)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toNotificationListResponse(notifications))
}

// UnreadCount は未読通知数を返す。
// GET /api/notifications/unread-count
//
// ポーリングワーカーのキャッシュを優先し、未取得の場合のみ上流に問い合わせる。
// 問い合わせた結果はキャッシュに反映し、次のポーリングまでの値とする。
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	session := requireAdmin(w, r)
	if session == nil {
		return
	}

	if entry, ok := h.cache.Get(session.ID); ok {
		writeJSON(w, http.StatusOK, unreadCountResponse{Count: entry.Count})
		return
	}

	count, err := h.api.UnreadCount(r.Context(), session.Token)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	h.cache.Set(session.ID, count)

	writeJSON(w, http.StatusOK, unreadCountResponse{Count: count})
}

// MarkRead は通知1件を既読にする。
// PUT /api/notifications/{id}/read
//
// 成功後は一覧を再取得して返し、未読数キャッシュも更新する。
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	session := requireAdmin(w, r)
	if session == nil {
		return
	}

	id, err := parseIDParam(r, "id")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("通知IDが不正です"))
		return
	}

	if err := h.api.MarkNotificationRead(r.Context(), session.Token, id); err != nil {
		writeUpstreamError(w, err)
		return
	}

	h.refreshUnreadCount(r.Context(), session)

	notifications, err := h.api.ListNotifications(r.Context(), session.Token)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toNotificationListResponse(notifications))
}

// MarkAllRead は全通知を既読にする。
// PUT /api/notifications/mark-all-read
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	session := requireAdmin(w, r)
	if session == nil {
		return
	}

	if err := h.api.MarkAllNotificationsRead(r.Context(), session.Token); err != nil {
		writeUpstreamError(w, err)
		return
	}

	h.cache.Set(session.ID, 0)

	notifications, err := h.api.ListNotifications(r.Context(), session.Token)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toNotificationListResponse(notifications))
}

// refreshUnreadCount は既読操作後の未読数をキャッシュに反映する。
// 失敗しても次のポーリングで回復するため、エラーは無視する。
func (h *NotificationHandler) refreshUnreadCount(ctx context.Context, session *model.Session) {
	count, err := h.api.UnreadCount(ctx, session.Token)
	if err != nil {
		return
	}
	h.cache.Set(session.ID, count)
}
