package handler

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/accesscode"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/admin"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/identity"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/session"
)

// --- モック定義 ---

type mockValidator struct {
	validateFn func(r *http.Request) (session.Verdict, error)
}

func (m *mockValidator) Validate(r *http.Request) (session.Verdict, error) {
	return m.validateFn(r)
}

type mockResolver struct {
	resolveFn func(ctx context.Context, id *identity.Identity) (model.AccessStatus, error)
}

func (m *mockResolver) Resolve(ctx context.Context, id *identity.Identity) (model.AccessStatus, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, id)
	}
	return model.NoAccess, nil
}

func staticResolver(status model.AccessStatus, err error) *mockResolver {
	return &mockResolver{
		resolveFn: func(context.Context, *identity.Identity) (model.AccessStatus, error) {
			return status, err
		},
	}
}

type mockRedeemer struct {
	redeemFn   func(ctx context.Context, id *identity.Identity, code string) (accesscode.RedeemResult, error)
	attemptsFn func(ctx context.Context, id *identity.Identity) (accesscode.Attempts, error)
}

func (m *mockRedeemer) Attempts(ctx context.Context, id *identity.Identity) (accesscode.Attempts, error) {
	return m.attemptsFn(ctx, id)
}

func (m *mockRedeemer) Redeem(ctx context.Context, id *identity.Identity, code string) (accesscode.RedeemResult, error) {
	return m.redeemFn(ctx, id, code)
}

type mockStats struct {
	statsFn func(ctx context.Context) (*model.ProfileStats, error)
}

func (m *mockStats) Stats(ctx context.Context) (*model.ProfileStats, error) {
	return m.statsFn(ctx)
}

type mockAdminService struct {
	listFn      func(ctx context.Context, limit, offset int) ([]*model.Profile, error)
	setBannedFn func(ctx context.Context, actorID, userID string, banned bool) error
	setRoleFn   func(ctx context.Context, actorID, userID string, role model.Role) error
	issueFn     func(ctx context.Context, createdBy string) (*admin.IssuedCode, error)
}

func (m *mockAdminService) ListProfiles(ctx context.Context, limit, offset int) ([]*model.Profile, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockAdminService) SetBanned(ctx context.Context, actorID, userID string, banned bool) error {
	if m.setBannedFn != nil {
		return m.setBannedFn(ctx, actorID, userID, banned)
	}
	return nil
}

func (m *mockAdminService) SetRole(ctx context.Context, actorID, userID string, role model.Role) error {
	if m.setRoleFn != nil {
		return m.setRoleFn(ctx, actorID, userID, role)
	}
	return nil
}

func (m *mockAdminService) IssueAccessCode(ctx context.Context, createdBy string) (*admin.IssuedCode, error) {
	if m.issueFn != nil {
		return m.issueFn(ctx, createdBy)
	}
	return nil, nil
}

// --- ヘルパー ---

func withIdentity(req *http.Request, userID string) *http.Request {
	return req.WithContext(identity.WithIdentity(req.Context(), &identity.Identity{
		UserID: userID,
		Email:  userID + "@example.com",
	}))
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
