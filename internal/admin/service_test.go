package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/accesscode"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
)

// --- モック ---

type mockProfileRepo struct {
	listFn      func(ctx context.Context, limit, offset int) ([]*model.Profile, error)
	setBannedFn func(ctx context.Context, userID string, banned bool) error
	setRoleFn   func(ctx context.Context, userID string, role model.Role) error
	statsFn     func(ctx context.Context, now time.Time) (*model.ProfileStats, error)
}

func (m *mockProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	return nil, nil
}
func (m *mockProfileRepo) List(ctx context.Context, limit, offset int) ([]*model.Profile, error) {
	return m.listFn(ctx, limit, offset)
}
func (m *mockProfileRepo) SetBanned(ctx context.Context, userID string, banned bool) error {
	return m.setBannedFn(ctx, userID, banned)
}
func (m *mockProfileRepo) SetRole(ctx context.Context, userID string, role model.Role) error {
	return m.setRoleFn(ctx, userID, role)
}
func (m *mockProfileRepo) Stats(ctx context.Context, now time.Time) (*model.ProfileStats, error) {
	return m.statsFn(ctx, now)
}

type mockCodeCreator struct {
	created []*model.AccessCode
	err     error
}

func (m *mockCodeCreator) Create(ctx context.Context, code *model.AccessCode) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, code)
	return nil
}

var testConfig = Config{BcryptCost: bcrypt.MinCost, AccessCodeTTL: 48 * time.Hour}

// --- テスト ---

func TestService_WithoutPrivilegedStore_FailsFast(t *testing.T) {
	svc := NewService(nil, nil, testConfig)
	ctx := context.Background()

	_, err := svc.ListProfiles(ctx, 10, 0)
	assert.ErrorIs(t, err, model.ErrConfigurationMissing)

	assert.ErrorIs(t, svc.SetBanned(ctx, "admin", "u1", true), model.ErrConfigurationMissing)
	assert.ErrorIs(t, svc.SetRole(ctx, "admin", "u1", model.RoleAdmin), model.ErrConfigurationMissing)

	_, err = svc.Stats(ctx)
	assert.ErrorIs(t, err, model.ErrConfigurationMissing)

	_, err = svc.IssueAccessCode(ctx, "admin")
	assert.ErrorIs(t, err, model.ErrConfigurationMissing)
}

func TestService_SetBanned(t *testing.T) {
	var gotUser string
	var gotBanned bool
	repo := &mockProfileRepo{
		setBannedFn: func(ctx context.Context, userID string, banned bool) error {
			gotUser, gotBanned = userID, banned
			return nil
		},
	}
	svc := NewService(repo, nil, testConfig)

	require.NoError(t, svc.SetBanned(context.Background(), "admin", "u1", true))
	assert.Equal(t, "u1", gotUser)
	assert.True(t, gotBanned)

	require.NoError(t, svc.SetBanned(context.Background(), "admin", "u1", false))
	assert.False(t, gotBanned)
}

func TestService_SetBanned_Self(t *testing.T) {
	svc := NewService(&mockProfileRepo{}, nil, testConfig)

	err := svc.SetBanned(context.Background(), "admin", "admin", true)

	assert.ErrorIs(t, err, ErrSelfModification)
}

func TestService_SetRole(t *testing.T) {
	var gotRole model.Role
	repo := &mockProfileRepo{
		setRoleFn: func(ctx context.Context, userID string, role model.Role) error {
			gotRole = role
			return nil
		},
	}
	svc := NewService(repo, nil, testConfig)

	require.NoError(t, svc.SetRole(context.Background(), "admin", "u1", model.RoleAdmin))
	assert.Equal(t, model.RoleAdmin, gotRole)

	assert.ErrorIs(t, svc.SetRole(context.Background(), "admin", "admin", model.RoleCustomer), ErrSelfModification)
}

func TestService_SetRole_NotFound(t *testing.T) {
	repo := &mockProfileRepo{
		setRoleFn: func(ctx context.Context, userID string, role model.Role) error {
			return model.ErrProfileNotFound
		},
	}
	svc := NewService(repo, nil, testConfig)

	err := svc.SetRole(context.Background(), "admin", "missing", model.RoleCustomer)

	assert.ErrorIs(t, err, model.ErrProfileNotFound)
}

func TestService_ListAndStats(t *testing.T) {
	repo := &mockProfileRepo{
		listFn: func(ctx context.Context, limit, offset int) ([]*model.Profile, error) {
			assert.Equal(t, 50, limit)
			assert.Equal(t, 100, offset)
			return []*model.Profile{{UserID: "u1"}}, nil
		},
		statsFn: func(ctx context.Context, now time.Time) (*model.ProfileStats, error) {
			return nil, errors.New("db down")
		},
	}
	svc := NewService(repo, nil, testConfig)

	profiles, err := svc.ListProfiles(context.Background(), 50, 100)
	require.NoError(t, err)
	assert.Len(t, profiles, 1)

	_, err = svc.Stats(context.Background())
	assert.Error(t, err)
}

func TestService_IssueAccessCode(t *testing.T) {
	creator := &mockCodeCreator{}
	svc := NewService(&mockProfileRepo{}, creator, testConfig)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	issued, err := svc.IssueAccessCode(context.Background(), "admin")

	require.NoError(t, err)
	require.Len(t, creator.created, 1)
	stored := creator.created[0]
	assert.Equal(t, stored.ID, issued.ID)
	assert.Equal(t, "admin", stored.CreatedBy)
	assert.Equal(t, now.Add(48*time.Hour), issued.ExpiresAt)
	assert.NotContains(t, stored.CodeHash, issued.Code, "raw code must not be stored")

	canonical, ok := accesscode.Normalize(issued.Code)
	require.True(t, ok)
	assert.Equal(t, stored.CodePrefix, accesscode.Prefix(canonical))
	assert.True(t, accesscode.Matches(canonical, stored.CodeHash))
}

func TestService_IssueAccessCode_StoreError(t *testing.T) {
	svc := NewService(&mockProfileRepo{}, &mockCodeCreator{err: errors.New("insert failed")}, testConfig)

	_, err := svc.IssueAccessCode(context.Background(), "admin")

	assert.Error(t, err)
}
