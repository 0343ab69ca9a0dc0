package accesscode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/identity"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/ratelimit"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/repository"
)

var (
	// ErrInvalidCode はコードの形式不正・不一致・使用済み・期限切れをまとめて表す。
	// どの理由で失敗したかは呼び出し元に区別させない。
	ErrInvalidCode = errors.New("invalid access code")
	// ErrRateLimited は試行回数の上限を超えた場合に返す。
	ErrRateLimited = errors.New("too many redemption attempts")
	// ErrAccountBanned はBANされたアカウントが引き換えを試みた場合に返す。
	ErrAccountBanned = errors.New("account banned")
	// ErrNotAuthenticated はIdentityがない場合に返す。
	ErrNotAuthenticated = errors.New("not authenticated")
)

// CodeStore はアクセスコードの参照と引き換えに必要なインターフェース。
// repository.AccessCodeRepositoryの部分集合として定義する。
type CodeStore interface {
	ListRedeemableByPrefix(ctx context.Context, prefix string, now time.Time) ([]*model.AccessCode, error)
	Redeem(ctx context.Context, codeID string, profile *model.Profile, now time.Time) error
}

// ProfileFinder はプロフィール取得のインターフェース。見つからない場合は(nil, nil)を返す。
type ProfileFinder interface {
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
}

// AttemptLimiter は引き換え試行のレート制限インターフェース。
type AttemptLimiter interface {
	Check(ctx context.Context, identifier string, cfg ratelimit.Config) ratelimit.Result
	Reset(ctx context.Context, identifier string)
	Status(ctx context.Context, identifier string) *ratelimit.Entry
}

// RedeemResult は引き換えの結果。
type RedeemResult struct {
	Profile *model.Profile
	// AlreadyMember はプロフィールが既に存在し、コードを消費しなかったことを示す。
	AlreadyMember bool
	// RateLimit はこの試行に対するレート制限の判定。
	RateLimit ratelimit.Result
}

// Attempts は現在のウィンドウにおける引き換え試行の残り回数。
type Attempts struct {
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
	// ResetAt はウィンドウの終了時刻。試行がなければnil。
	ResetAt *time.Time `json:"resetAt,omitempty"`
}

// Service はアクセスコードの引き換えを行う。
type Service struct {
	codes    CodeStore
	profiles ProfileFinder
	limiter  AttemptLimiter
	limit    ratelimit.Config
	now      func() time.Time
}

// NewService は新しいServiceを生成する。
func NewService(codes CodeStore, profiles ProfileFinder, limiter AttemptLimiter, limit ratelimit.Config) *Service {
	return &Service{
		codes:    codes,
		profiles: profiles,
		limiter:  limiter,
		limit:    limit,
		now:      time.Now,
	}
}

// LimiterKey は引き換え試行のレート制限キーを返す。
func LimiterKey(userID string) string {
	return "redeem:" + userID
}

// Redeem はIdentityに対してアクセスコードを引き換え、顧客プロフィールを作成する。
// 成功した場合はレート制限をリセットする。
func (s *Service) Redeem(ctx context.Context, id *identity.Identity, input string) (RedeemResult, error) {
	if id == nil {
		return RedeemResult{}, ErrNotAuthenticated
	}

	key := LimiterKey(id.UserID)
	rl := s.limiter.Check(ctx, key, s.limit)
	result := RedeemResult{RateLimit: rl}
	if !rl.Success {
		slog.Warn("access code redemption rate limited", slog.String("user_id", id.UserID))
		return result, ErrRateLimited
	}

	existing, err := s.profiles.FindByUserID(ctx, id.UserID)
	if err != nil {
		return result, fmt.Errorf("%w: %w", model.ErrUpstreamFetchFailed, err)
	}
	if existing != nil {
		if existing.IsBanned {
			return result, ErrAccountBanned
		}
		s.limiter.Reset(ctx, key)
		result.Profile = existing
		result.AlreadyMember = true
		return result, nil
	}

	canonical, ok := Normalize(input)
	if !ok {
		return result, ErrInvalidCode
	}

	now := s.now()
	candidates, err := s.codes.ListRedeemableByPrefix(ctx, Prefix(canonical), now)
	if err != nil {
		return result, fmt.Errorf("%w: %w", model.ErrUpstreamFetchFailed, err)
	}

	var matched *model.AccessCode
	for _, c := range candidates {
		if c.IsRedeemable(now) && Matches(canonical, c.CodeHash) {
			matched = c
			break
		}
	}
	if matched == nil {
		return result, ErrInvalidCode
	}

	profile := &model.Profile{
		UserID:    id.UserID,
		Email:     id.Email,
		Role:      model.RoleCustomer,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.codes.Redeem(ctx, matched.ID, profile, now); err != nil {
		if errors.Is(err, repository.ErrAccessCodeUnavailable) {
			return result, ErrInvalidCode
		}
		return result, fmt.Errorf("failed to redeem access code: %w", err)
	}

	s.limiter.Reset(ctx, key)

	slog.Info("access code redeemed",
		slog.String("user_id", id.UserID),
		slog.String("code_id", matched.ID),
	)

	result.Profile = profile
	return result, nil
}

// Attempts は試行回数を消費せずに残り回数を返す。
func (s *Service) Attempts(ctx context.Context, id *identity.Identity) (Attempts, error) {
	if id == nil {
		return Attempts{}, ErrNotAuthenticated
	}
	a := Attempts{Limit: s.limit.MaxAttempts, Remaining: s.limit.MaxAttempts}
	if entry := s.limiter.Status(ctx, LimiterKey(id.UserID)); entry != nil {
		a.Remaining = max(s.limit.MaxAttempts-entry.Count, 0)
		resetAt := entry.ResetAt
		a.ResetAt = &resetAt
	}
	return a, nil
}
