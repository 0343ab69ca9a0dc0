// Package access はIdentityとProfileからリクエスト単位のアクセス判定を導出する。
//
// Resolveは副作用を持たず、同一リクエスト内でレイアウト・ページ・APIの各層から
// 重複して呼ばれることを許容する。RequestScopeを設定したコンテキストでは
// 2回目以降の呼び出しは同じ結果を返す。
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/identity"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
)

// ProfileFinder はプロフィール取得のインターフェース。
// 見つからない場合は(nil, nil)を返す。
type ProfileFinder interface {
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
}

// OutcomeRecorder はアクセス判定の結果を記録するインターフェース。
type OutcomeRecorder interface {
	RecordAccessResolution(outcome string)
}

// 判定結果のラベル。
const (
	OutcomeAnonymous = "anonymous"
	OutcomeNoProfile = "no_profile"
	OutcomeBanned    = "banned"
	OutcomeGranted   = "granted"
	OutcomeError     = "error"
)

// Config はResolverの設定。
type Config struct {
	// SuperAdminEmail は保存されたロールに関わらずadminとして扱うメールアドレス。空で無効。
	SuperAdminEmail string
	// Timeout はプロフィール取得1回あたりのタイムアウト。
	Timeout time.Duration
	// BreakerFailures はサーキットブレーカーが開くまでの連続失敗回数。
	BreakerFailures uint32
	// BreakerCooldown はブレーカーが開いてから半開に移るまでの時間。
	BreakerCooldown time.Duration
}

// Resolver はAccessStatusを導出する。
type Resolver struct {
	profiles        ProfileFinder
	breaker         *gobreaker.CircuitBreaker
	timeout         time.Duration
	superAdminEmail string
	recorder        OutcomeRecorder
}

// NewResolver は新しいResolverを生成する。recorderはnil可。
func NewResolver(profiles ProfileFinder, cfg Config, recorder OutcomeRecorder) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "profile-store",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &Resolver{
		profiles:        profiles,
		breaker:         breaker,
		timeout:         cfg.Timeout,
		superAdminEmail: strings.ToLower(strings.TrimSpace(cfg.SuperAdminEmail)),
		recorder:        recorder,
	}
}

// Resolve はIdentityのアクセス判定を返す。
// Identityがnilの場合はフェイルクローズでNoAccessを返す。
// データストアの障害はmodel.ErrUpstreamFetchFailedでラップして返す。
func (r *Resolver) Resolve(ctx context.Context, id *identity.Identity) (model.AccessStatus, error) {
	if id == nil || id.UserID == "" {
		r.record(OutcomeAnonymous)
		return model.NoAccess, nil
	}

	scope := scopeFromContext(ctx)
	if scope != nil {
		if status, ok := scope.get(id.UserID); ok {
			return status, nil
		}
	}

	profile, err := r.fetchProfile(ctx, id.UserID)
	if err != nil {
		r.record(OutcomeError)
		return model.NoAccess, err
	}

	status := r.derive(id, profile)
	if scope != nil {
		scope.put(id.UserID, status)
	}
	return status, nil
}

func (r *Resolver) derive(id *identity.Identity, profile *model.Profile) model.AccessStatus {
	if profile == nil {
		r.record(OutcomeNoProfile)
		return model.NoAccess
	}

	role := profile.Role
	if r.isSuperAdmin(id, profile) {
		role = model.RoleAdmin
	}

	if profile.IsBanned {
		r.record(OutcomeBanned)
		return model.AccessStatus{HasAccess: false, IsBanned: true, Role: role}
	}

	r.record(OutcomeGranted)
	return model.AccessStatus{HasAccess: true, IsBanned: false, Role: role}
}

func (r *Resolver) isSuperAdmin(id *identity.Identity, profile *model.Profile) bool {
	if r.superAdminEmail == "" {
		return false
	}
	email := id.Email
	if email == "" {
		email = profile.Email
	}
	return strings.ToLower(strings.TrimSpace(email)) == r.superAdminEmail
}

func (r *Resolver) fetchProfile(ctx context.Context, userID string) (*model.Profile, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return r.profiles.FindByUserID(fetchCtx, userID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			slog.Warn("profile fetch rejected by circuit breaker", slog.String("user_id", userID))
		} else {
			slog.Error("profile fetch failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("%w: %w", model.ErrUpstreamFetchFailed, err)
	}

	profile, _ := result.(*model.Profile)
	return profile, nil
}

func (r *Resolver) record(outcome string) {
	if r.recorder != nil {
		r.recorder.RecordAccessResolution(outcome)
	}
}
