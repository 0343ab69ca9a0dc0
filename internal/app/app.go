// Package app はコマンドごとの依存関係のワイヤリングと起動処理を提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/access"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/accesscode"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/admin"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/config"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/database"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/edge"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/handler"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/identity"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/logger"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/metrics"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/middleware"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/ratelimit"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/repository"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/session"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// openPools は接続プールを開き、疎通を確認する。
func openPools(ctx context.Context, cfg *config.Config) (*database.Pools, error) {
	pools, err := database.OpenPools(cfg.DatabaseURL, cfg.DatabaseServiceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pools.Ping(pingCtx); err != nil {
		pools.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.Bool("privileged_pool", pools.Privileged != nil),
	)
	return pools, nil
}

// buildRateLimitStore はREDIS_URLの有無に応じてレート制限ストアを生成する。
// 返されるclose関数はストアが保持するリソースを解放する。
func buildRateLimitStore(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (ratelimit.Store, func(), error) {
	if cfg.RedisURL == "" {
		store := ratelimit.NewMemoryStore(cfg.RateLimitSweep)
		metrics.RegisterStoreSize(reg, store.Len)
		slog.Info("rate limit store: memory")
		return store, store.Stop, nil
	}

	client, err := ratelimit.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure redis: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("rate limit store: redis")
	return ratelimit.NewRedisStore(client, "blogos:ratelimit:"), func() { client.Close() }, nil
}

// newAdminService は特権接続がある場合のみリポジトリを渡して管理サービスを生成する。
// 型付きnilをインターフェースに入れないよう、未設定時は明示的にnilを渡す。
func newAdminService(pools *database.Pools, cfg *config.Config) *admin.Service {
	adminCfg := admin.Config{
		BcryptCost:    cfg.BcryptCost,
		AccessCodeTTL: cfg.AccessCodeTTL,
	}
	if pools.Privileged == nil {
		slog.Warn("DATABASE_SERVICE_URL is not set; admin operations are disabled")
		return admin.NewService(nil, nil, adminCfg)
	}
	return admin.NewService(
		repository.NewPostgresProfileRepo(pools.Privileged),
		repository.NewPostgresAccessCodeRepo(pools.Privileged),
		adminCfg,
	)
}

// newRegistry はプロセスとランタイムのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	pools, err := openPools(ctx, cfg)
	if err != nil {
		return err
	}
	defer pools.Close()

	// 2. メトリクス
	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	// 3. レート制限
	store, closeStore, err := buildRateLimitStore(ctx, cfg, reg)
	if err != nil {
		return err
	}
	defer closeStore()
	limiter := ratelimit.NewLimiter("redeem", store, ratelimit.WithRecorder(collector))

	// 4. リポジトリ・ドメインサービス
	profileRepo := repository.NewPostgresProfileRepo(pools.Reader)
	codeRepo := repository.NewPostgresAccessCodeRepo(pools.Reader)

	resolver := access.NewResolver(profileRepo, access.Config{
		SuperAdminEmail: cfg.SuperAdminEmail,
		Timeout:         cfg.UpstreamTimeout,
	}, collector)
	validator := session.NewValidator(resolver, collector)
	redeemer := accesscode.NewService(codeRepo, profileRepo, limiter, ratelimit.Config{
		MaxAttempts: cfg.RateLimitRedeemMax,
		Window:      cfg.RateLimitRedeemWindow,
	})
	adminService := newAdminService(pools, cfg)

	// 5. IdP・エッジ
	verifier, err := identity.NewVerifier(identity.VerifierConfig{
		Algorithm: cfg.IdentityJWTAlgorithm,
		Key:       cfg.IdentityJWTKey,
		Issuer:    cfg.IdentityIssuer,
	})
	if err != nil {
		return fmt.Errorf("failed to configure identity verifier: %w", err)
	}
	edgeRouter := edge.NewRouter(edge.Config{
		AppHost:      cfg.AppHost,
		AppSubdomain: cfg.AppSubdomain,
		Scheme:       cfg.PublicScheme,
	}, edge.DefaultTable(), collector)

	// 6. API全般のスロットリング（RATE_LIMIT_GENERALはreq/min単位）
	throttleCfg := middleware.DefaultThrottleConfig()
	throttleCfg.Rate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	throttleCfg.Burst = cfg.RateLimitGeneral
	throttle := middleware.NewThrottle(throttleCfg, collector)
	defer throttle.Stop()

	frontend, err := handler.NewFrontendProxy(cfg.FrontendURL)
	if err != nil {
		return err
	}

	// 7. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		HealthChecker:      pools,
		MetricsHandler:     metrics.Handler(reg),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		HSTS:               cfg.CookieSecure,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},

		TokenVerifier:      verifier,
		IdentityCookieName: cfg.IdentityCookieName,
		StatusRecorder:     collector,
		Throttle:           throttle,
		Edge:               edgeRouter.Middleware,

		Resolver:  resolver,
		Validator: validator,
		Redeemer:  redeemer,
		Admin:     adminService,
		Stats:     adminService,
		Cookie: session.CookieConfig{
			Domain: cfg.CookieDomain,
			Secure: cfg.CookieSecure,
			MaxAge: cfg.SessionMaxAge,
		},
		Frontend: frontend,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れアクセスコードのクリーンアップを日次で実行し、ctxのキャンセルで終了する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	pools, err := openPools(ctx, cfg)
	if err != nil {
		return err
	}
	defer pools.Close()

	// 削除は特権接続で行う。未設定の場合は参照用の接続を使う。
	db := pools.Privileged
	if db == nil {
		db = pools.Reader
	}

	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	job := cleanup.NewCleanupJob(repository.NewPostgresAccessCodeRepo(db), slog.Default(), collector)

	slog.Info("worker starting", slog.Duration("cleanup_interval", cfg.CleanupInterval))
	job.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// migrationURL はマイグレーションに使う接続URLを返す。
// DDLには特権が必要なため、特権接続が設定されていればそちらを優先する。
func migrationURL(cfg *config.Config) string {
	if cfg.HasServiceDatabase() {
		return cfg.DatabaseServiceURL
	}
	return cfg.DatabaseURL
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	dbURL := migrationURL(cfg)
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(dbURL)),
	)

	if err := database.RunMigrations(dbURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runMigrateDown は直近のマイグレーションを1つ取り消す。
func runMigrateDown(cfg *config.Config) error {
	dbURL := migrationURL(cfg)
	slog.Info("rolling back last database migration",
		slog.String("database_url", maskDatabaseURL(dbURL)),
	)

	if err := database.RollbackMigration(dbURL); err != nil {
		return fmt.Errorf("migration rollback failed: %w", err)
	}

	slog.Info("database migration rolled back")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	u.RawQuery = ""
	return u.String()
}
