package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/drainman/internal/drainapi"
	"github.com/hitoshi/drainman/internal/middleware"
	"github.com/hitoshi/drainman/internal/model"
)

// DrainAPIInterface は雨水ますハンドラーが必要とする上流APIインターフェース。
type DrainAPIInterface interface {
	ListDrains(ctx context.Context) ([]model.Drain, error)
	// GetDrain は雨水ますを1件取得する。存在しない場合は(nil, nil)を返す。
	GetDrain(ctx context.Context, id int64) (*model.Drain, error)
	CreateDrain(ctx context.Context, token string, input model.DrainInput) (*model.Drain, error)
	UpdateDrain(ctx context.Context, token string, id int64, input model.DrainInput) (*model.Drain, error)
	DeleteDrain(ctx context.Context, token string, id int64) error
	AdoptDrain(ctx context.Context, token string, id, userID int64) (*model.Drain, error)
}

// DrainHandler は雨水ます管理のHTTPハンドラー。
type DrainHandler struct {
	api DrainAPIInterface
}

// NewDrainHandler はDrainHandlerを生成する。
func NewDrainHandler(api DrainAPIInterface) *DrainHandler {
	return &DrainHandler{api: api}
}

// drainResponse は雨水ます情報のAPIレスポンス。
// Adopted / AdoptedByYou はセッション情報から導出するクライアント向けフラグ。
type drainResponse struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	ImageURL     string  `json:"imageUrl"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Adopted      bool    `json:"adopted"`
	AdoptedByYou bool    `json:"adoptedByYou"`
}

// drainListResponse は雨水ます一覧のAPIレスポンス。
type drainListResponse struct {
	Drains []drainResponse `json:"drains"`
}

// drainDetailResponse は雨水ます詳細のAPIレスポンス。
// AlreadyAdoptedは閲覧者が既に別のますの里親である場合のadvisoryフラグ。
// 全件一覧の走査で導出するため、走査に失敗した場合は黙ってfalseのままとなる。
// 最終判定は常に上流が行う。
type drainDetailResponse struct {
	drainResponse
	AlreadyAdopted bool `json:"alreadyAdopted"`
}

// drainMutationResponse は作成・更新後のAPIレスポンス。
// 変更対象と再取得した全件一覧の両方を返し、クライアント側の表示を上流の状態に揃える。
type drainMutationResponse struct {
	Drain  drainResponse   `json:"drain"`
	Drains []drainResponse `json:"drains"`
}

func toDrainResponse(drain *model.Drain, session *model.Session) drainResponse {
	resp := drainResponse{
		ID:        drain.ID,
		Name:      drain.Name,
		ImageURL:  drain.ImageURL,
		Latitude:  drain.Latitude,
		Longitude: drain.Longitude,
		Adopted:   drain.IsAdopted(),
	}
	if session != nil {
		resp.AdoptedByYou = drain.IsAdoptedBy(session.Profile.UserID)
	}
	return resp
}

func toDrainListResponse(drains []model.Drain, session *model.Session) drainListResponse {
	resp := drainListResponse{Drains: make([]drainResponse, 0, len(drains))}
	for i := range drains {
		resp.Drains = append(resp.Drains, toDrainResponse(&drains[i], session))
	}
	return resp
}

// sessionOrNil はコンテキストからセッションを取り出す。未ログインならnil。
func sessionOrNil(ctx context.Context) *model.Session {
	session, err := middleware.SessionFromContext(ctx)
	if err != nil {
		return nil
	}
	return session
}

// ListDrains は雨水ます一覧を返す。
// GET /api/drains
//
// 未ログインでも閲覧できる。ログイン中は自分が里親のますにフラグが付く。
func (h *DrainHandler) ListDrains(w http.ResponseWriter, r *http.Request) {
	drains, err := h.api.ListDrains(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDrainListResponse(drains, sessionOrNil(r.Context())))
}

// GetDrain は雨水ます詳細を返す。
// GET /api/drains/{id}
func (h *DrainHandler) GetDrain(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("雨水ますIDが不正です"))
		return
	}

	drain, err := h.api.GetDrain(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	if drain == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewDrainNotFoundError(id))
		return
	}

	session := sessionOrNil(r.Context())
	resp := drainDetailResponse{drainResponse: toDrainResponse(drain, session)}
	resp.AlreadyAdopted = h.viewerAdoptedAnother(r.Context(), session, drain.ID)

	writeJSON(w, http.StatusOK, resp)
}

// viewerAdoptedAnother は閲覧者が別の雨水ますの里親かを全件一覧の走査で判定する。
// best-effortなadvisory情報であり、走査に失敗してもエラーにしない。
func (h *DrainHandler) viewerAdoptedAnother(ctx context.Context, session *model.Session, drainID int64) bool {
	if !session.IsAdopter() {
		return false
	}

	drains, err := h.api.ListDrains(ctx)
	if err != nil {
		return false
	}
	for i := range drains {
		if drains[i].ID != drainID && drains[i].IsAdoptedBy(session.Profile.UserID) {
			return true
		}
	}
	return false
}

// AdoptDrain は雨水ますの採用を処理する。
// POST /api/drains/{id}/adopt
//
// 里親のみ実行できる。採用済みのますへの採用と、既に別のますを持つ里親による
// 二重採用は事前チェックで弾くが、上流での確定と競合した場合は
// 上流の409をALREADY_ADOPTEDとして伝える。
// 成功後は上流から再取得した状態を返す。
func (h *DrainHandler) AdoptDrain(w http.ResponseWriter, r *http.Request) {
	session := requireAdopter(w, r)
	if session == nil {
		return
	}

	id, err := parseIDParam(r, "id")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("雨水ますIDが不正です"))
		return
	}

	// 事前チェック（advisory）。最終判定は上流が行う。
	current, err := h.api.GetDrain(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	if current == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewDrainNotFoundError(id))
		return
	}
	if current.IsAdopted() {
		middleware.WriteErrorResponse(w, http.StatusConflict, model.NewAlreadyAdoptedError())
		return
	}

	// 閲覧者が既に別のますの里親なら二重採用を事前に弾く。
	// 走査に失敗した場合はそのまま上流に進み、最終判定を上流に委ねる。
	if h.viewerAdoptedAnother(r.Context(), session, id) {
		middleware.WriteErrorResponse(w, http.StatusConflict, model.NewAlreadyAdoptedError())
		return
	}

	if _, err := h.api.AdoptDrain(r.Context(), session.Token, id, session.Profile.UserID); err != nil {
		var statusErr *drainapi.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
			middleware.WriteErrorResponse(w, http.StatusConflict, model.NewAlreadyAdoptedError())
			return
		}
		writeUpstreamError(w, err)
		return
	}

	// 採用確定後の状態を再取得して返す
	updated, err := h.api.GetDrain(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	if updated == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewDrainNotFoundError(id))
		return
	}

	writeJSON(w, http.StatusOK, toDrainResponse(updated, session))
}

// CreateDrain は雨水ますの新規登録を処理する。
// POST /api/drains
//
// 管理者のみ実行できる。成功後は一覧を再取得して返す。
func (h *DrainHandler) CreateDrain(w http.ResponseWriter, r *http.Request) {
	session := requireAdmin(w, r)
	if session == nil {
		return
	}

	input, ok := h.decodeDrainInput(w, r)
	if !ok {
		return
	}

	drain, err := h.api.CreateDrain(r.Context(), session.Token, input)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	drains, err := h.api.ListDrains(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, drainMutationResponse{
		Drain:  toDrainResponse(drain, session),
		Drains: toDrainListResponse(drains, session).Drains,
	})
}

// UpdateDrain は雨水ますの更新を処理する。
// PUT /api/drains/{id}
func (h *DrainHandler) UpdateDrain(w http.ResponseWriter, r *http.Request) {
	session := requireAdmin(w, r)
	if session == nil {
		return
	}

	id, err := parseIDParam(r, "id")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("雨水ますIDが不正です"))
		return
	}

	input, ok := h.decodeDrainInput(w, r)
	if !ok {
		return
	}

	drain, err := h.api.UpdateDrain(r.Context(), session.Token, id, input)
	if err != nil {
		var statusErr *drainapi.StatusError
		if errors.As(err, &statusErr) && statusErr.IsNotFound() {
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewDrainNotFoundError(id))
			return
		}
		writeUpstreamError(w, err)
		return
	}

	drains, err := h.api.ListDrains(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, drainMutationResponse{
		Drain:  toDrainResponse(drain, session),
		Drains: toDrainListResponse(drains, session).Drains,
	})
}

// DeleteDrain は雨水ますの削除を処理する。
// DELETE /api/drains/{id}?confirm=true
//
// 管理者のみ実行できる。確認パラメータ無しの呼び出しは拒否する。
// 成功後は一覧を再取得して返す。
func (h *DrainHandler) DeleteDrain(w http.ResponseWriter, r *http.Request) {
	session := requireAdmin(w, r)
	if session == nil {
		return
	}

	id, err := parseIDParam(r, "id")
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("雨水ますIDが不正です"))
		return
	}

	if !requireConfirmation(w, r) {
		return
	}

	if err := h.api.DeleteDrain(r.Context(), session.Token, id); err != nil {
		var statusErr *drainapi.StatusError
		if errors.As(err, &statusErr) && statusErr.IsNotFound() {
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewDrainNotFoundError(id))
			return
		}
		writeUpstreamError(w, err)
		return
	}

	drains, err := h.api.ListDrains(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDrainListResponse(drains, session))
}

// decodeDrainInput はリクエストボディを解析し入力値を検証する。
func (h *DrainHandler) decodeDrainInput(w http.ResponseWriter, r *http.Request) (model.DrainInput, bool) {
	var input model.DrainInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディの解析に失敗しました"))
		return input, false
	}

	if input.Name == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("名前を入力してください"))
		return input, false
	}
	if input.ImageURL == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("画像URLを入力してください"))
		return input, false
	}
	if input.Latitude == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("緯度を入力してください"))
		return input, false
	}
	if input.Longitude == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("経度を入力してください"))
		return input, false
	}
	if *input.Latitude < -90 || *input.Latitude > 90 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("緯度は-90〜90の範囲で指定してください"))
		return input, false
	}
	if *input.Longitude < -180 || *input.Longitude > 180 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("経度は-180〜180の範囲で指定してください"))
		return input, false
	}

	return input, true
}
