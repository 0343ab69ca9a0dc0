package middleware

import (
	"log/slog"
	"net/http"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/identity"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
)

// TokenVerifier はIdPのセッショントークンを検証するインターフェース。
type TokenVerifier interface {
	Verify(token string) (*identity.Identity, error)
}

// NewIdentityMiddleware はCookieまたはAuthorizationヘッダーのトークンを検証し、
// 認証済みIdentityをリクエストコンテキストに注入するミドルウェアを返す。
// トークンがない・無効な場合は匿名リクエストとして次に渡し、拒否はしない。
func NewIdentityMiddleware(verifier TokenVerifier, cookieName string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := identity.TokenFromRequest(r, cookieName)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := verifier.Verify(token)
			if err != nil {
				slog.Debug("identity token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
		})
	}
}

// RequireIdentity はIdentityのないリクエストに401を返すミドルウェア。
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity.FromContext(r.Context()) == nil {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}
