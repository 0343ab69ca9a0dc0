package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/admin"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/identity"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/middleware"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// AdminServiceInterface は管理ハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	ListProfiles(ctx context.Context, limit, offset int) ([]*model.Profile, error)
	SetBanned(ctx context.Context, actorID, userID string, banned bool) error
	SetRole(ctx context.Context, actorID, userID string, role model.Role) error
	IssueAccessCode(ctx context.Context, createdBy string) (*admin.IssuedCode, error)
}

// AdminHandler は管理APIのハンドラー。
// ルーティング側でRequireAdminを通過したリクエストのみを受け取る。
type AdminHandler struct {
	service AdminServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

type profileResponse struct {
	UserID    string     `json:"userId"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	IsBanned  bool       `json:"isBanned"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type profileListResponse struct {
	Profiles []profileResponse `json:"profiles"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin customer"`
}

// ListProfiles はプロフィール一覧を返す。
// GET /api/admin/profiles?limit=&offset=
func (h *AdminHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", defaultPageSize)
	if !ok || limit < 1 || limit > maxPageSize {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("limitは1から200の範囲で指定してください"))
		return
	}
	offset, ok := queryInt(r, "offset", 0)
	if !ok || offset < 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("offsetは0以上で指定してください"))
		return
	}

	profiles, err := h.service.ListProfiles(r.Context(), limit, offset)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := profileListResponse{
		Profiles: make([]profileResponse, 0, len(profiles)),
		Limit:    limit,
		Offset:   offset,
	}
	for _, p := range profiles {
		resp.Profiles = append(resp.Profiles, profileResponse{
			UserID:    p.UserID,
			Email:     p.Email,
			Role:      p.Role,
			IsBanned:  p.IsBanned,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Ban はプロフィールをBANする。
// POST /api/admin/profiles/{userID}/ban
func (h *AdminHandler) Ban(w http.ResponseWriter, r *http.Request) {
	h.setBanned(w, r, true)
}

// Unban はプロフィールのBANを解除する。
// POST /api/admin/profiles/{userID}/unban
func (h *AdminHandler) Unban(w http.ResponseWriter, r *http.Request) {
	h.setBanned(w, r, false)
}

func (h *AdminHandler) setBanned(w http.ResponseWriter, r *http.Request, banned bool) {
	actor := identity.FromContext(r.Context())
	if actor == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	err := h.service.SetBanned(r.Context(), actor.UserID, chi.URLParam(r, "userID"), banned)
	if err != nil {
		h.writeMutationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetRole はプロフィールのロールを変更する。
// PUT /api/admin/profiles/{userID}/role
func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	actor := identity.FromContext(r.Context())
	if actor == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	var req setRoleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	role, _ := model.ParseRole(req.Role)

	if err := h.service.SetRole(r.Context(), actor.UserID, chi.URLParam(r, "userID"), role); err != nil {
		h.writeMutationError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IssueAccessCode はアクセスコードを発行する。平文のコードはこの応答でのみ返す。
// POST /api/admin/access-codes
func (h *AdminHandler) IssueAccessCode(w http.ResponseWriter, r *http.Request) {
	actor := identity.FromContext(r.Context())
	if actor == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	issued, err := h.service.IssueAccessCode(r.Context(), actor.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusCreated, issued)
}

func (h *AdminHandler) writeMutationError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, admin.ErrSelfModification) {
		middleware.WriteErrorResponse(w, http.StatusConflict, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "管理者は自分自身をBANまたは降格できません。",
			Category: "validation",
			Action:   "別の管理者に変更を依頼してください。",
		})
		return
	}
	handleServiceError(w, r, err)
}

func queryInt(r *http.Request, key string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
