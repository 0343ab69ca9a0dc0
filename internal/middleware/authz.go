package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/access"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/identity"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
)

// StatusResolver はIdentityのアクセス判定を導出するインターフェース。
type StatusResolver interface {
	Resolve(ctx context.Context, id *identity.Identity) (model.AccessStatus, error)
}

// NewAccessScopeMiddleware はリクエスト単位でAccessStatusをメモ化する領域を設定する。
// レイアウト・ページ・APIの各層が同じ判定を共有する。
func NewAccessScopeMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(access.WithRequestScope(r.Context())))
		})
	}
}

// RequireAdmin は管理者以外のリクエストを拒否するミドルウェアを返す。
// 未認証は401、管理者以外は403、判定に失敗した場合は500を返す。
func RequireAdmin(resolver StatusResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identity.FromContext(r.Context())
			if id == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
				return
			}

			status, err := resolver.Resolve(r.Context(), id)
			if err != nil {
				slog.Error("failed to resolve access status",
					slog.String("user_id", id.UserID),
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			if !status.IsAdmin() {
				slog.Warn("admin route denied",
					slog.String("user_id", id.UserID),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
