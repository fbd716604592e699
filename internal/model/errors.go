package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNetwork              = "NETWORK_ERROR"
	ErrCodeAuthFailed           = "AUTH_FAILED"
	ErrCodeRegistrationFailed   = "REGISTRATION_FAILED"
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeAuthorizationDenied  = "AUTHORIZATION_DENIED"
	ErrCodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	ErrCodeAlreadyAdopted       = "ALREADY_ADOPTED"
	ErrCodeDrainNotFound        = "DRAIN_NOT_FOUND"
	ErrCodeUpstreamError        = "UPSTREAM_ERROR"
	ErrCodeSessionExpired       = "SESSION_EXPIRED"
	ErrCodeInvalidURL           = "INVALID_URL"
	ErrCodeSSRFBlocked          = "SSRF_BLOCKED"
)

// NewNetworkError はネットワークエラーを生成する。
// 上流APIへのリクエストが完了しなかった場合に使用する。
func NewNetworkError() *APIError {
	return &APIError{
		Code:     ErrCodeNetwork,
		Message:  "サーバーとの通信に失敗しました。",
		Category: "upstream",
		Action:   "ネットワーク接続を確認し、しばらく待ってから再度お試しください。",
	}
}

// NewAuthFailedError はログイン失敗エラーを生成する。
// messageには上流APIが返したエラーメッセージをそのまま渡す。
func NewAuthFailedError(message string) *APIError {
	if message == "" {
		message = "ログインに失敗しました。"
	}
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  message,
		Category: "auth",
		Action:   "メールアドレスとパスワードを確認してください。",
	}
}

// NewRegistrationFailedError はアカウント登録失敗エラーを生成する。
// messageには上流APIが返したエラーメッセージ（メールアドレス重複等）をそのまま渡す。
func NewRegistrationFailedError(message string) *APIError {
	if message == "" {
		message = "アカウント登録に失敗しました。"
	}
	return &APIError{
		Code:     ErrCodeRegistrationFailed,
		Message:  message,
		Category: "auth",
		Action:   "入力内容を確認してください。登録済みのメールアドレスは使用できません。",
	}
}

// NewValidationError は送信前バリデーション失敗エラーを生成する。
// このエラーが返る場合、上流へのリクエストは送信されていない。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容に不備があります: %s", reason),
		Category: "validation",
		Action:   "必須項目をすべて入力してから再度お試しください。",
	}
}

// NewAuthorizationDeniedError は権限チェック失敗エラーを生成する。
// ロール検査がリクエスト送信前に失敗した場合に使用する（上流へのリクエストは送信されない）。
func NewAuthorizationDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthorizationDenied,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "必要な権限を持つアカウントでログインしてください。",
	}
}

// NewConfirmationRequiredError は破壊的操作の確認不足エラーを生成する。
func NewConfirmationRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeConfirmationRequired,
		Message:  "この操作には明示的な確認が必要です。",
		Category: "validation",
		Action:   "confirm=true を指定して操作を確定してください。",
	}
}

// NewAlreadyAdoptedError は採用済みユーザーによる二重採用の助言的エラーを生成する。
// このチェックはベストエフォートであり、最終的な採用可否は上流APIが判断する。
func NewAlreadyAdoptedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyAdopted,
		Message:  "すでに別の雨水ますを採用しています。",
		Category: "validation",
		Action:   "1ユーザーが採用できる雨水ますは1件までです。",
	}
}

// NewDrainNotFoundError は雨水ます未検出エラーを生成する。
func NewDrainNotFoundError(drainID int64) *APIError {
	return &APIError{
		Code:     ErrCodeDrainNotFound,
		Message:  fmt.Sprintf("指定された雨水ますが見つかりません: %d", drainID),
		Category: "upstream",
		Action:   "雨水ますIDを確認してください。",
	}
}

// NewUpstreamError は上流APIの非2xxレスポンスに対するエラーを生成する。
// messageには上流が返したボディ（空の場合あり）を渡す。
func NewUpstreamError(statusCode int, message string) *APIError {
	if message == "" {
		message = fmt.Sprintf("サーバーがエラーを返しました（ステータス %d）。", statusCode)
	}
	return &APIError{
		Code:     ErrCodeUpstreamError,
		Message:  message,
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSessionExpiredError はセッション不在・期限切れエラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "セッションが無効か期限切れです。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を指定してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを指定してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}
