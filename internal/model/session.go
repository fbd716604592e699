package model

import "time"

// Role はユーザーの役割を表す。
type Role string

const (
	// RoleAdmin は管理者。雨水ますの作成・編集・削除と通知の閲覧ができる。
	RoleAdmin Role = "ADMIN"
	// RoleAdopter は里親。1件の雨水ますを採用しコメントを投稿できる。
	RoleAdopter Role = "ADOPTER"
)

// Profile は認証済みユーザーのプロフィールを表す。
// 上流APIの認証レスポンスから作られ、セッションに永続化される。
type Profile struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

// AuthResponse は上流APIの認証エンドポイントのレスポンスを表す。
type AuthResponse struct {
	Token  string `json:"token"`
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

// Profile はAuthResponseからProfileを構築する。
func (a *AuthResponse) Profile() Profile {
	return Profile{
		UserID: a.UserID,
		Email:  a.Email,
		Name:   a.Name,
		Role:   a.Role,
	}
}

// Session はブラウザスコープごとのログインセッションを表す。
// ベアラートークンとプロフィールは同一レコードとして永続化され、
// ログイン時に一緒に書き込まれ、ログアウト時に一緒に削除される。
// よって「プロフィールが存在する ⟺ トークンが存在する」が常に成り立つ。
type Session struct {
	ID        string
	Token     string
	Profile   Profile
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsAdmin はセッションのユーザーが管理者かを返す。
// セッションが存在しない場合（nilレシーバ）はfalseを返す。
func (s *Session) IsAdmin() bool {
	return s != nil && s.Profile.Role == RoleAdmin
}

// IsAdopter はセッションのユーザーが里親かを返す。
// セッションが存在しない場合（nilレシーバ）はfalseを返す。
func (s *Session) IsAdopter() bool {
	return s != nil && s.Profile.Role == RoleAdopter
}

// StoredSession は永続化層でのセッション表現。
// プロフィールはJSONバイト列のまま保持し、解釈はセッションマネージャが行う。
// 不正な形式のプロフィールを読んだ場合の扱い（fail closed）を
// ストレージ層に持ち込まないための分離。
type StoredSession struct {
	ID        string
	Token     string
	Profile   []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}
