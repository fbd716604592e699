package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hitoshi/drainman/internal/drainapi"
	"github.com/hitoshi/drainman/internal/middleware"
	"github.com/hitoshi/drainman/internal/model"
)

// CommentAPIInterface はコメントハンドラーが必要とする上流APIインターフェース。
type CommentAPIInterface interface {
	GetDrain(ctx context.Context, id int64) (*model.Drain, error)
	ListComments(ctx context.Context, drainID int64) ([]model.Comment, error)
	AddComment(ctx context.Context, token string, drainID, userID int64, input model.CommentInput) (*model.Comment, error)
	DeleteComment(ctx context.Context, token string, drainID, commentID int64) error
}

// TextSanitizer はユーザー入力テキストの無害化インターフェース。
type TextSanitizer interface {
	Sanitize(raw string) string
}

// CommentHandler は状況報告コメントのHTTPハンドラー。
type CommentHandler struct {
	api       CommentAPIInterface
	sanitizer TextSanitizer
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(api CommentAPIInterface, sanitizer TextSanitizer) *CommentHandler {
	return &CommentHandler{
		api:       api,
		sanitizer: sanitizer,
	}
}

// addCommentRequest はコメント投稿リクエストのボディ。
type addCommentRequest struct {
	Text     string  `json:"text"`
	ImageURL *string `json:"imageUrl"`
}

// commentResponse はコメントのAPIレスポンス。
// テキストと投稿者名は表示前に無害化済み。
type commentResponse struct {
	ID        int64     `json:"id"`
	DrainID   int64     `json:"drainId"`
	UserID    int64     `json:"userId"`
	UserName  string    `json:"userName"`
	Text      string    `json:"text"`
	ImageURL  *string   `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// commentListResponse はコメント一覧のAPIレスポンス。
type commentListResponse struct {
	Comments []commentResponse `json:"comments"`
}

func (h *CommentHandler) toCommentResponse(c *model.Comment) commentResponse {
	return commentResponse{
		ID:        c.ID,
		DrainID:   c.DrainID,
		UserID:    c.UserID,
		UserName:  h.sanitizer.Sanitize(c.UserName),
		Text:      h.sanitizer.Sanitize(c.Text),
		ImageURL:  c.ImageURL,
		CreatedAt: c.CreatedAt,
	}
}

func (h *CommentHandler) toCommentListResponse(comments []model.Comment) commentListResponse {
	resp := commentListResponse{Comments: make([]commentResponse, 0, len(comments))}
	for i := range comments {
		resp.Comments = append(resp.Comments, h.toCommentResponse(&comments[i]))
	}
	return resp
}

// ListComments はコメント一覧を返す。
// GET /api/drains/{id}/comments
//
// コメントは採用済みのますにのみ表示される。未採用のますは空一覧を返す。
func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	drainID, err := parseIDParam(r, "id")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("雨水ますIDが不正です"))
		return
	}

	drain, err := h.api.GetDrain(r.Context(), drainID)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	if drain == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewDrainNotFoundError(drainID))
		return
	}
	if !drain.IsAdopted() {
		writeJSON(w, http.StatusOK, commentListResponse{Comments: []commentResponse{}})
		return
	}

	comments, err := h.api.ListComments(r.Context(), drainID)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toCommentListResponse(comments))
}

// AddComment はコメント投稿を処理する。
// POST /api/drains/{id}/comments
//
// 里親のみ投稿できる。本文は無害化後に空となる入力（タグのみ等）を拒否する。
// 成功後は一覧を再取得して返す。
func (h *CommentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	session := requireAdopter(w, r)
	if session == nil {
		return
	}

	drainID, err := parseIDParam(r, "id")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("雨水ますIDが不正です"))
		return
	}

	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	text := h.sanitizer.Sanitize(req.Text)
	if text == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("コメント本文を入力してください"))
		return
	}

	input := model.CommentInput{
		Text:     text,
		ImageURL: req.ImageURL,
	}
	if _, err := h.api.AddComment(r.Context(), session.Token, drainID, session.Profile.UserID, input); err != nil {
		var statusErr *drainapi.StatusError
		if errors.As(err, &statusErr) && statusErr.IsNotFound() {
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewDrainNotFoundError(drainID))
			return
		}
		writeUpstreamError(w, err)
		return
	}

	comments, err := h.api.ListComments(r.Context(), drainID)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toCommentListResponse(comments))
}

// DeleteComment はコメント削除を処理する。
// DELETE /api/drains/{id}/comments/{commentId}?confirm=true
//
// 管理者のみ実行できる。確認パラメータ無しの呼び出しは拒否する。
// 成功後は一覧を再取得して返す。
func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	session := requireAdmin(w, r)
	if session == nil {
		return
	}

	drainID, err := parseIDParam(r, "id")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("雨水ますIDが不正です"))
		return
	}

	commentID, err := parseIDParam(r, "commentId")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("コメントIDが不正です"))
		return
	}

	if !requireConfirmation(w, r) {
		return
	}

	if err := h.api.DeleteComment(r.Context(), session.Token, drainID, commentID); err != nil {
		writeUpstreamError(w, err)
		return
	}

	comments, err := h.api.ListComments(r.Context(), drainID)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toCommentListResponse(comments))
}
