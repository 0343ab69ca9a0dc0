// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
)

// ErrAccessCodeUnavailable はアクセスコードが既に使用済みまたは期限切れの場合に返す。
var ErrAccessCodeUnavailable = errors.New("access code already redeemed or expired")

// ProfileRepository はプロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// List はプロフィールを作成日時の降順で取得する。
	List(ctx context.Context, limit, offset int) ([]*model.Profile, error)

	// SetBanned はBAN状態を更新する。対象が存在しない場合はmodel.ErrProfileNotFoundを返す。
	SetBanned(ctx context.Context, userID string, banned bool) error

	// SetRole はロールを更新する。RoleNoneはNULLとして保存する。
	// 対象が存在しない場合はmodel.ErrProfileNotFoundを返す。
	SetRole(ctx context.Context, userID string, role model.Role) error

	// Stats は管理ダッシュボード向けの集計値を返す。
	Stats(ctx context.Context, now time.Time) (*model.ProfileStats, error)
}

// AccessCodeRepository はアクセスコードの永続化インターフェース。
type AccessCodeRepository interface {
	// Create はアクセスコードを作成する。
	Create(ctx context.Context, code *model.AccessCode) error

	// ListRedeemableByPrefix は指定プレフィックスの未使用かつ期限内のコードを取得する。
	ListRedeemableByPrefix(ctx context.Context, prefix string, now time.Time) ([]*model.AccessCode, error)

	// Redeem はコードを使用済みにし、プロフィールを同一トランザクションで作成する。
	// 既に使用済みまたは期限切れの場合はErrAccessCodeUnavailableを返す。
	// プロフィールが既に存在する場合は作成しない。
	Redeem(ctx context.Context, codeID string, profile *model.Profile, now time.Time) error

	// DeleteExpired は期限切れの未使用コードを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
