package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/drainman/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
// トークンとプロフィールは同一行に書き込むため、片方だけ残ることはない。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.StoredSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, token, profile, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.Token, session.Profile, session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.StoredSession, error) {
	session := &model.StoredSession{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, token, profile, created_at, expires_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&session.ID, &session.Token, &session.Profile, &session.CreatedAt, &session.ExpiresAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return deleted, nil
}

// ListActive は期限切れでない全セッションを返す。
func (r *PostgresSessionRepo) ListActive(ctx context.Context) ([]*model.StoredSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, token, profile, created_at, expires_at
		 FROM sessions
		 WHERE expires_at > now()
		 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.StoredSession
	for rows.Next() {
		session := &model.StoredSession{}
		if err := rows.Scan(&session.ID, &session.Token, &session.Profile, &session.CreatedAt, &session.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
