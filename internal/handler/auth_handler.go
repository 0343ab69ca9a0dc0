package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/identity"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/middleware"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/session"
)

// SessionValidator はリクエストのサイトセッションを検証するインターフェース。
type SessionValidator interface {
	Validate(r *http.Request) (session.Verdict, error)
}

// StatusResolver はIdentityのアクセス判定を導出するインターフェース。
type StatusResolver interface {
	Resolve(ctx context.Context, id *identity.Identity) (model.AccessStatus, error)
}

// AuthHandler はサイトアクセスCookieのライフサイクルを扱うハンドラー。
type AuthHandler struct {
	validator SessionValidator
	resolver  StatusResolver
	cookie    session.CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(validator SessionValidator, resolver StatusResolver, cookie session.CookieConfig) *AuthHandler {
	return &AuthHandler{
		validator: validator,
		resolver:  resolver,
		cookie:    cookie,
	}
}

// validateResponse は検証エンドポイントのレスポンス。
type validateResponse struct {
	Valid  bool       `json:"valid"`
	Reason string     `json:"reason,omitempty"`
	UserID string     `json:"userId,omitempty"`
	Role   model.Role `json:"role,omitempty"`
}

// Validate はサイトセッションを検証する。
// GET /api/auth/validate
// 拒否した場合はサイトアクセスCookieを破棄する。
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	verdict, err := h.validator.Validate(r)
	if err != nil {
		slog.Error("session validation failed",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, validateResponse{Valid: false})
		return
	}

	if !verdict.Valid {
		session.ClearAccessCookies(w, h.cookie)
		writeJSON(w, verdict.Reason.HTTPStatus(), validateResponse{
			Valid:  false,
			Reason: string(verdict.Reason),
		})
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{
		Valid:  true,
		UserID: verdict.UserID,
		Role:   verdict.Role,
	})
}

// Establish はIdPでのサインイン後にサイトアクセスCookieを発行する。
// POST /api/auth/session
// アクセス権のないIdentityにはCookieを発行しない。
func (h *AuthHandler) Establish(w http.ResponseWriter, r *http.Request) {
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
		session.ClearAccessCookies(w, h.cookie)
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewAccountBannedError())
		return
	case !status.HasAccess:
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewAccessRevokedError())
		return
	}

	session.SetAccessCookie(w, h.cookie, id.UserID)
	writeJSON(w, http.StatusOK, status)
}

// SignOut はサイトアクセスCookieと旧Cookieを破棄する。
// POST /api/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	session.ClearAccessCookies(w, h.cookie)
	w.WriteHeader(http.StatusNoContent)
}
