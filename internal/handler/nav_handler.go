package handler

import (
	"net/http"

	"github.com/hitoshi/drainman/internal/model"
)

// NavHandler はナビゲーション状態のHTTPハンドラー。
// 画面側はこのレスポンスだけでヘッダー表示（リンク・未読バッジ）を組み立てられる。
type NavHandler struct {
	cache UnreadCountCache
}

// NewNavHandler はNavHandlerを生成する。
func NewNavHandler(cache UnreadCountCache) *NavHandler {
	return &NavHandler{cache: cache}
}

// navLink はナビゲーションのリンク1件。
type navLink struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// navResponse はナビゲーション状態のAPIレスポンス。
// UnreadCountは管理者ログイン時のみ設定される。
type navResponse struct {
	Authenticated bool             `json:"authenticated"`
	Profile       *profileResponse `json:"profile,omitempty"`
	Links         []navLink        `json:"links"`
	UnreadCount   *int64           `json:"unreadCount,omitempty"`
}

// Nav はナビゲーション状態を返す。
// GET /api/nav
//
// 未ログインでも呼び出せる。リンクは役割に応じて出し分ける。
// 未読数はポーリングワーカーのキャッシュから読むだけで、上流には問い合わせない。
func (h *NavHandler) Nav(w http.ResponseWriter, r *http.Request) {
	session := sessionOrNil(r.Context())

	resp := navResponse{
		Links: []navLink{
			{Label: "マップ", Path: "/"},
		},
	}

	if session == nil {
		resp.Links = append(resp.Links,
			navLink{Label: "ログイン", Path: "/login"},
			navLink{Label: "アカウント登録", Path: "/register"},
		)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Authenticated = true
	profile := toProfileResponse(session.Profile)
	resp.Profile = &profile

	if session.Profile.Role == model.RoleAdmin {
		resp.Links = append(resp.Links,
			navLink{Label: "雨水ます管理", Path: "/admin/drains"},
			navLink{Label: "通知", Path: "/admin/notifications"},
		)
		if entry, ok := h.cache.Get(session.ID); ok {
			count := entry.Count
			resp.UnreadCount = &count
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
