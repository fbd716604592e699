package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/drainman/internal/middleware"
)

// Pinger はヘルスチェックが必要とするデータベース疎通確認のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 認証
	SessionService SessionServiceInterface
	AuthConfig     AuthHandlerConfig

	// 雨水ます・コメント
	DrainAPI   DrainAPIInterface
	CommentAPI CommentAPIInterface
	Sanitizer  TextSanitizer

	// 通知
	NotificationAPI NotificationAPIInterface
	UnreadCache     UnreadCountCache

	// 画像プロキシ
	ImageHandler *ImageHandler

	// 運用
	DB             Pinger
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → CORS → SecurityHeaders → CSRF → Session(Optional/必須) → RateLimit
//
// 一覧・詳細・ナビゲーションは未ログインでも呼び出せるため、
// セッションはオプショナルとして解決し、役割チェックは各ハンドラーが行う。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.SessionService, deps.AuthConfig)
	drainHandler := NewDrainHandler(deps.DrainAPI)
	commentHandler := NewCommentHandler(deps.CommentAPI, deps.Sanitizer)
	notificationHandler := NewNotificationHandler(deps.NotificationAPI, deps.UnreadCache)
	navHandler := NewNavHandler(deps.UnreadCache)

	// --- 運用用エンドポイント（セッション・レート制限なし） ---
	r.Get("/health", newHealthHandler(deps.DB))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 未ログインでも呼び出せるルート ---
	// セッションはオプショナルに解決し、ログイン中はフラグ導出に使う。
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewOptionalSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/auth", func(r chi.Router) {
			r.With(deps.RateLimiter.MutationMiddleware()).Post("/login", authHandler.Login)
			r.With(deps.RateLimiter.MutationMiddleware()).Post("/register", authHandler.Register)
			r.Post("/logout", authHandler.Logout)
		})

		r.Get("/api/drains", drainHandler.ListDrains)
		r.Get("/api/drains/{id}", drainHandler.GetDrain)
		r.Get("/api/drains/{id}/comments", commentHandler.ListComments)
		r.Get("/api/nav", navHandler.Nav)
		r.Get("/api/image", deps.ImageHandler.Proxy)
	})

	// --- ログイン必須のルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/auth/me", authHandler.Me)

		// 雨水ますの変更系
		r.Route("/api/drains", func(r chi.Router) {
			r.With(deps.RateLimiter.MutationMiddleware()).Post("/", drainHandler.CreateDrain)

			r.Route("/{id}", func(r chi.Router) {
				r.With(deps.RateLimiter.MutationMiddleware()).Put("/", drainHandler.UpdateDrain)
				r.With(deps.RateLimiter.MutationMiddleware()).Delete("/", drainHandler.DeleteDrain)
				r.With(deps.RateLimiter.MutationMiddleware()).Post("/adopt", drainHandler.AdoptDrain)

				r.With(deps.RateLimiter.MutationMiddleware()).Post("/comments", commentHandler.AddComment)
				r.With(deps.RateLimiter.MutationMiddleware()).Delete("/comments/{commentId}", commentHandler.DeleteComment)
			})
		})

		// 管理者向け通知
		r.Route("/api/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.ListNotifications)
			r.Get("/unread-count", notificationHandler.UnreadCount)
			r.With(deps.RateLimiter.MutationMiddleware()).Put("/{id}/read", notificationHandler.MarkRead)
			r.With(deps.RateLimiter.MutationMiddleware()).Put("/mark-all-read", notificationHandler.MarkAllRead)
		})
	})

	return r
}

// newHealthHandler はデータベース疎通を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"reason": "database unreachable",
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
