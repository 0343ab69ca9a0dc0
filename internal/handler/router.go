package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/middleware"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/session"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 共通
	HealthChecker      HealthChecker
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	HSTS               bool
	CSRF               middleware.CSRFConfig

	// ミドルウェア依存
	TokenVerifier      middleware.TokenVerifier
	IdentityCookieName string
	StatusRecorder     middleware.StatusRecorder
	Throttle           *middleware.Throttle
	Edge               func(http.Handler) http.Handler

	// ハンドラー
	Resolver  StatusResolver
	Validator SessionValidator
	Redeemer  CodeRedeemer
	Admin     AdminServiceInterface
	Stats     StatsProvider
	Cookie    session.CookieConfig
	Frontend  http.Handler

	// Logger はリクエストログの出力先。nilの場合はslog.Default()を使う。
	Logger *slog.Logger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Identity → Logging → StatusMetrics → Recovery →
//	SecurityHeaders → CORS → AccessScope → Edge
//
// /api 配下ではさらに Throttle と、状態変更ルートに CSRF を適用する。
// /health と /metrics はエッジ判定の外に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(chimw.RealIP)
	r.Use(middleware.NewIdentityMiddleware(deps.TokenVerifier, deps.IdentityCookieName))
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewStatusMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.Validator, deps.Resolver, deps.Cookie)
	accessHandler := NewAccessHandler(deps.Redeemer, deps.Cookie)
	dashboardHandler := NewDashboardHandler(deps.Resolver, deps.Stats)
	adminHandler := NewAdminHandler(deps.Admin)

	frontend := deps.Frontend
	if frontend == nil {
		frontend = http.NotFoundHandler()
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
		r.Use(middleware.NewAccessScopeMiddleware())
		if deps.Edge != nil {
			r.Use(deps.Edge)
		}

		r.Route("/api", func(r chi.Router) {
			if deps.Throttle != nil {
				r.Use(deps.Throttle.Middleware())
			}

			r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

			csrf := middleware.NewCSRFMiddleware(deps.CSRF)

			r.Route("/auth", func(r chi.Router) {
				r.Get("/validate", authHandler.Validate)
				r.With(csrf).Post("/session", authHandler.Establish)
				r.With(csrf).Post("/signout", authHandler.SignOut)
			})

			r.Route("/access", func(r chi.Router) {
				r.Use(middleware.RequireIdentity)
				r.Get("/attempts", accessHandler.Attempts)
				r.With(csrf).Post("/redeem", accessHandler.Redeem)
			})

			r.With(middleware.RequireIdentity).Get("/dashboard/stats", dashboardHandler.Stats)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin(deps.Resolver))

				r.Get("/profiles", adminHandler.ListProfiles)
				r.Group(func(r chi.Router) {
					r.Use(csrf)
					r.Post("/profiles/{userID}/ban", adminHandler.Ban)
					r.Post("/profiles/{userID}/unban", adminHandler.Unban)
					r.Put("/profiles/{userID}/role", adminHandler.SetRole)
					r.Post("/access-codes", adminHandler.IssueAccessCode)
				})
			})

			r.NotFound(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusNotFound, map[string]string{"code": "NOT_FOUND"})
			})
		})

		r.NotFound(frontend.ServeHTTP)
	})

	return r
}
