package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/identity"
)

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、
// 500レスポンスを返すミドルウェアを生成する。
func NewRecoveryMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					userID := ""
					if id := identity.FromContext(r.Context()); id != nil {
						userID = id.UserID
					}
					slog.Error("panic recovered",
						slog.Any("panic", rec),
						slog.String("user_id", userID),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("request_id", RequestIDFromContext(r.Context())),
						slog.String("stack", string(debug.Stack())),
					)
					WriteInternalServerError(w)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
