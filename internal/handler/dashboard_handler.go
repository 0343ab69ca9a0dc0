package handler

import (
	"context"
	"net/http"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/identity"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/middleware"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
)

// StatsProvider は管理ダッシュボードの集計値を返すインターフェース。
type StatsProvider interface {
	Stats(ctx context.Context) (*model.ProfileStats, error)
}

// DashboardHandler はダッシュボードのハンドラー。
type DashboardHandler struct {
	resolver StatusResolver
	stats    StatsProvider
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(resolver StatusResolver, stats StatsProvider) *DashboardHandler {
	return &DashboardHandler{resolver: resolver, stats: stats}
}

type dashboardResponse struct {
	IsAdmin bool `json:"isAdmin"`
	Stats   any  `json:"stats"`
}

type customerStats struct {
	AccessConfirmed bool `json:"accessConfirmed"`
}

// Stats はダッシュボードの統計を返す。
// GET /api/dashboard/stats
// 管理者には集計値を、顧客にはアクセス確認のみを返す。
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	status, err := h.resolver.Resolve(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	switch {
	case status.IsBanned:
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewAccountBannedError())
		return
	case !status.HasAccess:
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewAccessRevokedError())
		return
	}

	if !status.IsAdmin() {
		writeJSON(w, http.StatusOK, dashboardResponse{
			IsAdmin: false,
			Stats:   customerStats{AccessConfirmed: true},
		})
		return
	}

	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{IsAdmin: true, Stats: stats})
}
