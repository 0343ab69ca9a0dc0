// Package admin は管理者向けのプロフィール管理とアクセスコード発行を提供する。
//
// 全ての操作は特権接続を必要とし、特権接続が設定されていない場合は
// 暗黙に縮退せずmodel.ErrConfigurationMissingを返す。
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/accesscode"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/repository"
)

// ErrSelfModification は管理者が自分自身をBANまたは降格しようとした場合に返す。
var ErrSelfModification = errors.New("administrators cannot ban or demote themselves")

// CodeCreator はアクセスコード作成のインターフェース。
type CodeCreator interface {
	Create(ctx context.Context, code *model.AccessCode) error
}

// IssuedCode は発行したアクセスコード。Codeは平文で、この応答でのみ返す。
type IssuedCode struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Config はServiceの設定。
type Config struct {
	BcryptCost    int
	AccessCodeTTL time.Duration
}

// Service は管理操作のサービス層。
type Service struct {
	profiles repository.ProfileRepository
	codes    CodeCreator
	cfg      Config
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// 特権接続が未設定の場合、profilesとcodesにはnilを渡す。
func NewService(profiles repository.ProfileRepository, codes CodeCreator, cfg Config) *Service {
	return &Service{
		profiles: profiles,
		codes:    codes,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *Service) requireProfiles() error {
	if s.profiles == nil {
		slog.Error("admin operation attempted without privileged database connection")
		return model.ErrConfigurationMissing
	}
	return nil
}

// ListProfiles はプロフィール一覧を返す。
func (s *Service) ListProfiles(ctx context.Context, limit, offset int) ([]*model.Profile, error) {
	if err := s.requireProfiles(); err != nil {
		return nil, err
	}
	profiles, err := s.profiles.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

// SetBanned は対象ユーザーのBAN状態を変更する。
func (s *Service) SetBanned(ctx context.Context, actorID, userID string, banned bool) error {
	if err := s.requireProfiles(); err != nil {
		return err
	}
	if banned && actorID == userID {
		return ErrSelfModification
	}
	if err := s.profiles.SetBanned(ctx, userID, banned); err != nil {
		return err
	}

	slog.Info("profile ban state changed",
		slog.String("actor_id", actorID),
		slog.String("user_id", userID),
		slog.Bool("banned", banned),
	)
	return nil
}

// SetRole は対象ユーザーのロールを変更する。
func (s *Service) SetRole(ctx context.Context, actorID, userID string, role model.Role) error {
	if err := s.requireProfiles(); err != nil {
		return err
	}
	if actorID == userID && role != model.RoleAdmin {
		return ErrSelfModification
	}
	if err := s.profiles.SetRole(ctx, userID, role); err != nil {
		return err
	}

	slog.Info("profile role changed",
		slog.String("actor_id", actorID),
		slog.String("user_id", userID),
		slog.String("role", string(role)),
	)
	return nil
}

// Stats は管理ダッシュボード向けの集計値を返す。
func (s *Service) Stats(ctx context.Context) (*model.ProfileStats, error) {
	if err := s.requireProfiles(); err != nil {
		return nil, err
	}
	stats, err := s.profiles.Stats(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to load profile stats: %w", err)
	}
	return stats, nil
}

// IssueAccessCode は新しいアクセスコードを発行する。
func (s *Service) IssueAccessCode(ctx context.Context, createdBy string) (*IssuedCode, error) {
	if s.codes == nil {
		slog.Error("access code issue attempted without privileged database connection")
		return nil, model.ErrConfigurationMissing
	}

	raw, prefix, hash, err := accesscode.Generate(s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	code := &model.AccessCode{
		ID:         uuid.NewString(),
		CodePrefix: prefix,
		CodeHash:   hash,
		CreatedBy:  createdBy,
		ExpiresAt:  now.Add(s.cfg.AccessCodeTTL),
		CreatedAt:  now,
	}
	if err := s.codes.Create(ctx, code); err != nil {
		return nil, fmt.Errorf("failed to store access code: %w", err)
	}

	slog.Info("access code issued",
		slog.String("actor_id", createdBy),
		slog.String("code_id", code.ID),
	)

	return &IssuedCode{ID: code.ID, Code: raw, ExpiresAt: code.ExpiresAt}, nil
}
