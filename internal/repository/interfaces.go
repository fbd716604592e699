// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/drainman/internal/model"
)

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.StoredSession) error

	// FindByID は指定IDのセッションを取得する。
	// 見つからない場合、および期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.StoredSession, error)

	// DeleteByID は指定IDのセッションを削除する。存在しなくてもエラーにしない。
	DeleteByID(ctx context.Context, id string) error

	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)

	// ListActive は期限切れでない全セッションを返す。
	ListActive(ctx context.Context) ([]*model.StoredSession, error)
}
