package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
)

func TestDashboardHandler_Stats(t *testing.T) {
	adminStats := &mockStats{statsFn: func(context.Context) (*model.ProfileStats, error) {
		return &model.ProfileStats{TotalProfiles: 3, Admins: 1, Customers: 2, Banned: 1, OutstandingAccessCodes: 4}, nil
	}}
	unreachable := &mockStats{statsFn: func(context.Context) (*model.ProfileStats, error) {
		t.Fatal("stats must not be read for non-admins")
		return nil, nil
	}}

	tests := []struct {
		name       string
		userID     string
		resolver   *mockResolver
		stats      *mockStats
		wantStatus int
		wantBody   string
	}{
		{
			name:       "anonymous",
			resolver:   &mockResolver{},
			stats:      unreachable,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "customer",
			userID:     "user-1",
			resolver:   staticResolver(model.AccessStatus{HasAccess: true, Role: model.RoleCustomer}, nil),
			stats:      unreachable,
			wantStatus: http.StatusOK,
			wantBody:   `{"isAdmin":false,"stats":{"accessConfirmed":true}}`,
		},
		{
			name:       "admin",
			userID:     "admin-1",
			resolver:   staticResolver(model.AccessStatus{HasAccess: true, Role: model.RoleAdmin}, nil),
			stats:      adminStats,
			wantStatus: http.StatusOK,
			wantBody:   `{"isAdmin":true,"stats":{"totalProfiles":3,"admins":1,"customers":2,"banned":1,"outstandingAccessCodes":4}}`,
		},
		{
			name:       "no profile",
			userID:     "user-1",
			resolver:   staticResolver(model.NoAccess, nil),
			stats:      unreachable,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "banned",
			userID:     "user-1",
			resolver:   staticResolver(model.AccessStatus{IsBanned: true, Role: model.RoleCustomer}, nil),
			stats:      unreachable,
			wantStatus: http.StatusForbidden,
		},
		{
			name:     "admin without privileged store",
			userID:   "admin-1",
			resolver: staticResolver(model.AccessStatus{HasAccess: true, Role: model.RoleAdmin}, nil),
			stats: &mockStats{statsFn: func(context.Context) (*model.ProfileStats, error) {
				return nil, model.ErrConfigurationMissing
			}},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"code":"CONFIGURATION_MISSING","message":"この操作は現在利用できません。","category":"system","action":"運営者へお問い合わせください。"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/dashboard/stats", nil)
			if tt.userID != "" {
				req = withIdentity(req, tt.userID)
			}
			w := httptest.NewRecorder()

			NewDashboardHandler(tt.resolver, tt.stats).Stats(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			}
		})
	}
}
