package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

const profileColumns = `user_id, email, role, is_banned, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*model.Profile, error) {
	p := &model.Profile{}
	var role sql.NullString
	if err := row.Scan(&p.UserID, &p.Email, &role, &p.IsBanned, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Role = model.Role(role.String)
	return p, nil
}

// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`,
		userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return p, nil
}

// List はプロフィールを作成日時の降順で取得する。
func (r *PostgresProfileRepo) List(ctx context.Context, limit, offset int) ([]*model.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles
		 ORDER BY created_at DESC, user_id
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	return profiles, nil
}

// SetBanned はBAN状態を更新する。
func (r *PostgresProfileRepo) SetBanned(ctx context.Context, userID string, banned bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET is_banned = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, banned,
	)
	if err != nil {
		return fmt.Errorf("failed to update ban state: %w", err)
	}
	return requireAffected(result, userID)
}

// SetRole はロールを更新する。RoleNoneはNULLとして保存する。
func (r *PostgresProfileRepo) SetRole(ctx context.Context, userID string, role model.Role) error {
	var value sql.NullString
	if role != model.RoleNone {
		value = sql.NullString{String: string(role), Valid: true}
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET role = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, value,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return requireAffected(result, userID)
}

// Stats は管理ダッシュボード向けの集計値を返す。
func (r *PostgresProfileRepo) Stats(ctx context.Context, now time.Time) (*model.ProfileStats, error) {
	s := &model.ProfileStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE role = 'admin'),
			COUNT(*) FILTER (WHERE role = 'customer'),
			COUNT(*) FILTER (WHERE is_banned),
			(SELECT COUNT(*) FROM access_codes WHERE redeemed_at IS NULL AND expires_at > $1)
		 FROM profiles`,
		now,
	).Scan(&s.TotalProfiles, &s.Admins, &s.Customers, &s.Banned, &s.OutstandingAccessCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate profile stats: %w", err)
	}
	return s, nil
}

func requireAffected(result sql.Result, userID string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", model.ErrProfileNotFound, userID)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
