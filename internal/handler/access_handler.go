package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/accesscode"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/identity"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/middleware"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/session"
)

// CodeRedeemer はアクセスコードを引き換えるサービスインターフェース。
type CodeRedeemer interface {
	Redeem(ctx context.Context, id *identity.Identity, code string) (accesscode.RedeemResult, error)
	Attempts(ctx context.Context, id *identity.Identity) (accesscode.Attempts, error)
}

// AccessHandler はアクセスコード引き換えのハンドラー。
type AccessHandler struct {
	redeemer CodeRedeemer
	cookie   session.CookieConfig
	now      func() time.Time
}

// NewAccessHandler はAccessHandlerを生成する。
func NewAccessHandler(redeemer CodeRedeemer, cookie session.CookieConfig) *AccessHandler {
	return &AccessHandler{
		redeemer: redeemer,
		cookie:   cookie,
		now:      time.Now,
	}
}

type redeemRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type redeemResponse struct {
	Success       bool       `json:"success"`
	Role          model.Role `json:"role"`
	AlreadyMember bool       `json:"alreadyMember"`
}

// Redeem はアクセスコードを引き換え、サイトアクセスCookieを発行する。
// POST /api/access/redeem
func (h *AccessHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	var req redeemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.redeemer.Redeem(r.Context(), id, req.Code)
	if !result.RateLimit.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.RateLimit.Remaining))
	}
	if err != nil {
		switch {
		case errors.Is(err, accesscode.ErrRateLimited):
			w.Header().Set("Retry-After", strconv.Itoa(result.RateLimit.RetryAfter(h.now())))
			middleware.WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
		case errors.Is(err, accesscode.ErrInvalidCode):
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidAccessCodeError())
		case errors.Is(err, accesscode.ErrAccountBanned):
			session.ClearAccessCookies(w, h.cookie)
			middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewAccountBannedError())
		case errors.Is(err, accesscode.ErrNotAuthenticated):
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		default:
			handleServiceError(w, r, err)
		}
		return
	}

	session.SetAccessCookie(w, h.cookie, id.UserID)
	writeJSON(w, http.StatusOK, redeemResponse{
		Success:       true,
		Role:          result.Profile.Role,
		AlreadyMember: result.AlreadyMember,
	})
}

// Attempts は引き換え試行の残り回数を返す。試行は消費しない。
// GET /api/access/attempts
func (h *AccessHandler) Attempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.redeemer.Attempts(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		if errors.Is(err, accesscode.ErrNotAuthenticated) {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
			return
		}
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, attempts)
}
