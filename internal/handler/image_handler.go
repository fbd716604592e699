package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/drainman/internal/middleware"
	"github.com/hitoshi/drainman/internal/model"
	"github.com/hitoshi/drainman/internal/security"
)

// ImageHandlerConfig は画像プロキシの設定。
type ImageHandlerConfig struct {
	MaxSize int64         // 転送する画像の最大バイト数
	Timeout time.Duration // 外部取得のタイムアウト
}

// ImageHandler は雨水ます画像のプロキシハンドラー。
// 外部URLの画像をブラウザに中継する際、SSRF防止の検証を通してから取得する。
type ImageHandler struct {
	guard  security.SSRFGuardService
	client *http.Client
	config ImageHandlerConfig
}

// NewImageHandler はImageHandlerを生成する。
func NewImageHandler(guard security.SSRFGuardService, config ImageHandlerConfig) *ImageHandler {
	return &ImageHandler{
		guard:  guard,
		client: guard.NewSafeClient(config.Timeout),
		config: config,
	}
}

// Proxy は画像プロキシを処理する。
// GET /api/image?url=...
//
// URL検証 → SSRF防止クライアントで取得 → Content-Type検証 → サイズ上限付き転送。
// 検証で弾いたURLは上流への接続自体を行わない。
func (h *ImageHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidURLError("urlパラメータが必要です"))
		return
	}

	if err := h.guard.ValidateURL(rawURL); err != nil {
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewSSRFBlockedError())
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, rawURL, nil)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidURLError("URLの形式が不正です"))
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		// safeurlクライアントはブロック対象への接続もエラーとして返す
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewSSRFBlockedError())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		middleware.WriteErrorResponse(w, http.StatusBadGateway,
			model.NewUpstreamError(resp.StatusCode, "画像の取得に失敗しました"))
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		middleware.WriteErrorResponse(w, http.StatusUnsupportedMediaType,
			model.NewInvalidURLError("画像以外のコンテンツは転送できません"))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, io.LimitReader(resp.Body, h.config.MaxSize))
}
