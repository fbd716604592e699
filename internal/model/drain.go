// Package model はドメインモデルを定義する。
package model

import "time"

// Drain は雨水ますを表す。IDの採番は上流APIが行い、クライアント側では割り当てない。
type Drain struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	ImageURL        string  `json:"imageUrl"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	AdoptedByUserID *int64  `json:"adoptedByUserId"`
}

// IsAdopted は雨水ますが里親に採用されているかを返す。
func (d *Drain) IsAdopted() bool {
	return d.AdoptedByUserID != nil
}

// IsAdoptedBy は指定ユーザーがこの雨水ますの里親かを返す。
func (d *Drain) IsAdoptedBy(userID int64) bool {
	return d.AdoptedByUserID != nil && *d.AdoptedByUserID == userID
}

// DrainInput は雨水ますの作成・更新リクエストを表す。
// 緯度・経度はポインタとし、未入力（JSONでの欠落・null）と値0を区別する。
type DrainInput struct {
	Name      string   `json:"name"`
	ImageURL  string   `json:"imageUrl"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Comment は採用済み雨水ますへの状況報告コメントを表す。
// ちょうど1つのDrainに属し、そのDrainが採用されている間のみ表示される。
type Comment struct {
	ID        int64     `json:"id"`
	DrainID   int64     `json:"drainId"`
	UserID    int64     `json:"userId"`
	UserName  string    `json:"userName"`
	Text      string    `json:"text"`
	ImageURL  *string   `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommentInput はコメント投稿リクエストを表す。
type CommentInput struct {
	Text     string  `json:"text"`
	ImageURL *string `json:"imageUrl"`
}

// NotificationType は管理者向け通知の種類を表す。
type NotificationType string

const (
	// NotificationDrainAdopted は雨水ますが採用されたことを示す。
	NotificationDrainAdopted NotificationType = "DRAIN_ADOPTED"
	// NotificationCommentAdded はコメントが投稿されたことを示す。
	NotificationCommentAdded NotificationType = "COMMENT_ADDED"
)

// Notification は管理者向け通知を表す。
// クライアント側で作成されることはなく、既読フラグの更新のみ行う。
type Notification struct {
	ID        int64            `json:"id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	DrainID   int64            `json:"drainId"`
	UserID    int64            `json:"userId"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

// UnreadCount は未読通知数のレスポンスを表す。
type UnreadCount struct {
	Count int64 `json:"count"`
}
