// Package drainapi は上流Drain Adoption REST APIのクライアントを提供する。
// 各画面はこのクライアントを直接呼び出し、共有データ層は介さない。
// どの操作もネットワーク往復は1回で、リトライは行わない。
package drainapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/drainman/internal/model"
)

// maxErrorBodySize は非2xxレスポンスのボディを読み取る最大サイズ。
// 認証・削除系のエラーボディはプレーンテキストで返ることがある。
const maxErrorBodySize = 4 * 1024

// StatusError は上流APIの非2xxレスポンスを表す。
// Bodyには上流が返したボディテキスト（JSONまたはプレーンテキスト）を保持する。
type StatusError struct {
	StatusCode int
	Body       string
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("上流APIがステータス %d を返しました: %s", e.StatusCode, e.Body)
}

// IsNotFound はステータスが404かを返す。
func (e *StatusError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// MetricsRecorder は上流リクエストのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordUpstreamStatus(statusCode int)
	RecordUpstreamLatency(duration time.Duration)
	RecordUpstreamFailure()
}

// Client は上流Drain Adoption APIのクライアント。
// ベアラートークンは認証が必要な操作にのみ付与する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    MetricsRecorder // nil可
	baseURL    string          // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// metricsはnilを許容する（記録しない）。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, metrics MetricsRecorder) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    metrics,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// do は上流APIへのリクエストを実行し、2xxの場合のみoutへJSONデコードする。
// tokenが空でない場合はAuthorization: Bearerヘッダーを付与する。
// トランスポート失敗はそのままエラーとして返し、非2xxは*StatusErrorとして返す。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, token string, body any, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "Drainman/1.0 Drain Adoption Gateway")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.RecordUpstreamLatency(time.Since(start))
	}
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordUpstreamFailure()
		}
		c.logger.Error("上流APIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("上流APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordUpstreamStatus(resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// エラーボディはプレーンテキストのまま保持し、呼び出し元がユーザーへ透過する
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		c.logger.Warn("上流APIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	if out == nil {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// --- 雨水ます ---

// ListDrains は全雨水ますの一覧を取得する。認証不要。
func (c *Client) ListDrains(ctx context.Context) ([]model.Drain, error) {
	var drains []model.Drain
	if err := c.do(ctx, http.MethodGet, "/api/drains", nil, "", nil, &drains); err != nil {
		return nil, err
	}
	return drains, nil
}

// GetDrain は指定IDの雨水ますを取得する。認証不要。
// 上流が404を返した場合はnilを返す（エラーにしない）。
func (c *Client) GetDrain(ctx context.Context, id int64) (*model.Drain, error) {
	var drain model.Drain
	err := c.do(ctx, http.MethodGet, "/api/drains/"+strconv.FormatInt(id, 10), nil, "", nil, &drain)
	if err != nil {
		if statusErr, ok := err.(*StatusError); ok && statusErr.IsNotFound() {
			return nil, nil
		}
		return nil, err
	}
	return &drain, nil
}

// CreateDrain は雨水ますを新規作成する。管理者トークンが必要。
func (c *Client) CreateDrain(ctx context.Context, token string, input model.DrainInput) (*model.Drain, error) {
	var drain model.Drain
	if err := c.do(ctx, http.MethodPost, "/api/drains", nil, token, input, &drain); err != nil {
		return nil, err
	}
	return &drain, nil
}

// UpdateDrain は雨水ますを更新する。管理者トークンが必要。
func (c *Client) UpdateDrain(ctx context.Context, token string, id int64, input model.DrainInput) (*model.Drain, error) {
	var drain model.Drain
	if err := c.do(ctx, http.MethodPut, "/api/drains/"+strconv.FormatInt(id, 10), nil, token, input, &drain); err != nil {
		return nil, err
	}
	return &drain, nil
}

// DeleteDrain は雨水ますを削除する。管理者トークンが必要。
func (c *Client) DeleteDrain(ctx context.Context, token string, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/drains/"+strconv.FormatInt(id, 10), nil, token, nil, nil)
}

// AdoptDrain は雨水ますを採用する。
// 採用の最終的な可否（1ユーザー1件の制約）は上流APIが判断する。
func (c *Client) AdoptDrain(ctx context.Context, token string, id, userID int64) (*model.Drain, error) {
	query := url.Values{"userId": {strconv.FormatInt(userID, 10)}}
	var drain model.Drain
	if err := c.do(ctx, http.MethodPost, "/api/drains/"+strconv.FormatInt(id, 10)+"/adopt", query, token, nil, &drain); err != nil {
		return nil, err
	}
	return &drain, nil
}

// --- コメント ---

// ListComments は指定雨水ますのコメント一覧を取得する。認証不要。
func (c *Client) ListComments(ctx context.Context, drainID int64) ([]model.Comment, error) {
	var comments []model.Comment
	path := "/api/drains/" + strconv.FormatInt(drainID, 10) + "/comments"
	if err := c.do(ctx, http.MethodGet, path, nil, "", nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// AddComment はコメントを投稿する。採用中の里親のトークンが必要。
func (c *Client) AddComment(ctx context.Context, token string, drainID, userID int64, input model.CommentInput) (*model.Comment, error) {
	query := url.Values{"userId": {strconv.FormatInt(userID, 10)}}
	path := "/api/drains/" + strconv.FormatInt(drainID, 10) + "/comments"
	var comment model.Comment
	if err := c.do(ctx, http.MethodPost, path, query, token, input, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// DeleteComment はコメントを削除する。管理者トークンが必要。
func (c *Client) DeleteComment(ctx context.Context, token string, drainID, commentID int64) error {
	path := "/api/drains/" + strconv.FormatInt(drainID, 10) + "/comments/" + strconv.FormatInt(commentID, 10)
	return c.do(ctx, http.MethodDelete, path, nil, token, nil, nil)
}

// --- 認証 ---

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// registerRequest はアカウント登録リクエストのボディ。
type registerRequest struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

// Login は資格情報で認証し、トークンとプロフィールを取得する。
// 失敗時（非2xx）は*StatusErrorを返し、Bodyに上流のエラーメッセージを保持する。
func (c *Client) Login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	var auth model.AuthResponse
	body := loginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, "", body, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// Register はアカウントを新規登録し、トークンとプロフィールを取得する。
// メールアドレス重複等の失敗時は*StatusErrorを返す。
func (c *Client) Register(ctx context.Context, name, email, password string, role model.Role) (*model.AuthResponse, error) {
	var auth model.AuthResponse
	body := registerRequest{Name: name, Email: email, Password: password, Role: role}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, "", body, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// --- 通知 ---

// ListNotifications は通知一覧を取得する。管理者トークンが必要。
func (c *Client) ListNotifications(ctx context.Context, token string) ([]model.Notification, error) {
	var notifications []model.Notification
	if err := c.do(ctx, http.MethodGet, "/api/notifications", nil, token, nil, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// UnreadCount は未読通知数を取得する。管理者トークンが必要。
func (c *Client) UnreadCount(ctx context.Context, token string) (int64, error) {
	var count model.UnreadCount
	if err := c.do(ctx, http.MethodGet, "/api/notifications/unread-count", nil, token, nil, &count); err != nil {
		return 0, err
	}
	return count.Count, nil
}

// MarkNotificationRead は指定通知を既読にする。管理者トークンが必要。
func (c *Client) MarkNotificationRead(ctx context.Context, token string, id int64) error {
	return c.do(ctx, http.MethodPut, "/api/notifications/"+strconv.FormatInt(id, 10)+"/read", nil, token, nil, nil)
}

// MarkAllNotificationsRead は全通知を既読にする。管理者トークンが必要。
func (c *Client) MarkAllNotificationsRead(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPut, "/api/notifications/mark-all-read", nil, token, nil, nil)
}
