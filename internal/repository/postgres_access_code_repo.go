package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
)

// PostgresAccessCodeRepo はPostgreSQLを使用したアクセスコードリポジトリ。
type PostgresAccessCodeRepo struct {
	db *sql.DB
}

// NewPostgresAccessCodeRepo はPostgresAccessCodeRepoを生成する。
func NewPostgresAccessCodeRepo(db *sql.DB) *PostgresAccessCodeRepo {
	return &PostgresAccessCodeRepo{db: db}
}

// Create はアクセスコードを作成する。
func (r *PostgresAccessCodeRepo) Create(ctx context.Context, code *model.AccessCode) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_codes (id, code_prefix, code_hash, created_by, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		code.ID, code.CodePrefix, code.CodeHash, code.CreatedBy, code.ExpiresAt, code.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert access code: %w", err)
	}
	return nil
}

// ListRedeemableByPrefix は指定プレフィックスの未使用かつ期限内のコードを取得する。
func (r *PostgresAccessCodeRepo) ListRedeemableByPrefix(ctx context.Context, prefix string, now time.Time) ([]*model.AccessCode, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, code_prefix, code_hash, created_by, expires_at, created_at
		 FROM access_codes
		 WHERE code_prefix = $1 AND redeemed_at IS NULL AND expires_at > $2
		 ORDER BY created_at`,
		prefix, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list access codes: %w", err)
	}
	defer rows.Close()

	var codes []*model.AccessCode
	for rows.Next() {
		c := &model.AccessCode{}
		if err := rows.Scan(&c.ID, &c.CodePrefix, &c.CodeHash, &c.CreatedBy, &c.ExpiresAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan access code: %w", err)
		}
		codes = append(codes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate access codes: %w", err)
	}
	return codes, nil
}

// Redeem はコードを使用済みにし、プロフィールを同一トランザクションで作成する。
func (r *PostgresAccessCodeRepo) Redeem(ctx context.Context, codeID string, profile *model.Profile, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// プロフィールを先に作成する（access_codes.redeemed_byの外部キー）
	var role sql.NullString
	if profile.Role != model.RoleNone {
		role = sql.NullString{String: string(profile.Role), Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (user_id, email, role, is_banned, created_at, updated_at)
		 VALUES ($1, $2, $3, FALSE, $4, $4)
		 ON CONFLICT (user_id) DO NOTHING`,
		profile.UserID, profile.Email, role, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	// 並行する引き換えは条件付きUPDATEで1件に絞られる
	result, err := tx.ExecContext(ctx,
		`UPDATE access_codes SET redeemed_by = $2, redeemed_at = $3
		 WHERE id = $1 AND redeemed_at IS NULL AND expires_at > $3`,
		codeID, profile.UserID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to mark access code redeemed: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAccessCodeUnavailable
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れの未使用コードを削除し、削除件数を返す。
func (r *PostgresAccessCodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM access_codes WHERE redeemed_at IS NULL AND expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired access codes: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ AccessCodeRepository = (*PostgresAccessCodeRepo)(nil)
