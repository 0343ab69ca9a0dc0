// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL        string `envconfig:"DATABASE_URL" required:"true"`
	DatabaseServiceURL string `envconfig:"DATABASE_SERVICE_URL"` // 管理者操作用の特権接続。未設定なら管理操作は失敗する

	// Identity provider
	IdentityJWTKey       string `envconfig:"IDENTITY_JWT_KEY" required:"true"`
	IdentityJWTAlgorithm string `envconfig:"IDENTITY_JWT_ALGORITHM" default:"HS256"`
	IdentityIssuer       string `envconfig:"IDENTITY_ISSUER"`
	IdentityCookieName   string `envconfig:"IDENTITY_COOKIE_NAME" default:"__session"`

	// Hosts
	AppHost       string `envconfig:"APP_HOST" required:"true"`
	AppSubdomain  string `envconfig:"APP_SUBDOMAIN" default:"tool"`
	MarketingHost string `envconfig:"MARKETING_HOST" required:"true"`
	PublicScheme  string `envconfig:"PUBLIC_SCHEME" default:"https"`
	FrontendURL   string `envconfig:"FRONTEND_URL"`

	// Access
	SuperAdminEmail string        `envconfig:"SUPER_ADMIN_EMAIL"`
	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"5s"`
	AccessCodeTTL   time.Duration `envconfig:"ACCESS_CODE_TTL" default:"720h"`
	BcryptCost      int           `envconfig:"BCRYPT_COST" default:"12"`

	// Rate Limit
	RedisURL              string        `envconfig:"REDIS_URL"`
	RateLimitRedeemMax    int           `envconfig:"RATE_LIMIT_REDEEM_MAX" default:"5"`
	RateLimitRedeemWindow time.Duration `envconfig:"RATE_LIMIT_REDEEM_WINDOW" default:"15m"`
	RateLimitSweep        time.Duration `envconfig:"RATE_LIMIT_SWEEP_INTERVAL" default:"1m"`
	RateLimitGeneral      int           `envconfig:"RATE_LIMIT_GENERAL" default:"120"` // req/min

	// Worker
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"24h"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Server
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`

	// Cookie
	CookieDomain  string `envconfig:"COOKIE_DOMAIN"`
	CookieSecure  bool   `envconfig:"COOKIE_SECURE" default:"true"`
	SessionMaxAge int    `envconfig:"SESSION_MAX_AGE" default:"604800"`

	// CORS
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"` // カンマ区切り。未設定なら両ホスト
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// envconfigは空文字列を設定済みとみなすため、必須項目を再確認する
	var missing []string
	for key, val := range map[string]string{
		"DATABASE_URL":     cfg.DatabaseURL,
		"IDENTITY_JWT_KEY": cfg.IdentityJWTKey,
		"APP_HOST":         cfg.AppHost,
		"MARKETING_HOST":   cfg.MarketingHost,
	} {
		if val == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.IdentityJWTAlgorithm = strings.ToUpper(cfg.IdentityJWTAlgorithm)
	switch cfg.IdentityJWTAlgorithm {
	case "HS256", "RS256":
	default:
		return nil, fmt.Errorf("unsupported IDENTITY_JWT_ALGORITHM: %s", cfg.IdentityJWTAlgorithm)
	}

	// 0以下の値はレート制限やタイムアウトを黙って無効化するため起動時に拒否する
	for _, v := range []struct {
		key string
		val int
	}{
		{"RATE_LIMIT_REDEEM_MAX", cfg.RateLimitRedeemMax},
		{"RATE_LIMIT_GENERAL", cfg.RateLimitGeneral},
		{"SESSION_MAX_AGE", cfg.SessionMaxAge},
	} {
		if v.val < 1 {
			return nil, fmt.Errorf("%s must be positive: %d", v.key, v.val)
		}
	}
	for _, v := range []struct {
		key string
		val time.Duration
	}{
		{"RATE_LIMIT_REDEEM_WINDOW", cfg.RateLimitRedeemWindow},
		{"RATE_LIMIT_SWEEP_INTERVAL", cfg.RateLimitSweep},
		{"UPSTREAM_TIMEOUT", cfg.UpstreamTimeout},
		{"ACCESS_CODE_TTL", cfg.AccessCodeTTL},
		{"CLEANUP_INTERVAL", cfg.CleanupInterval},
	} {
		if v.val <= 0 {
			return nil, fmt.Errorf("%s must be positive: %s", v.key, v.val)
		}
	}

	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{
			cfg.PublicScheme + "://" + cfg.AppHost,
			cfg.PublicScheme + "://" + cfg.MarketingHost,
		}
	}

	return &cfg, nil
}

// HasServiceDatabase は特権接続が設定されているかどうかを返す。
func (c *Config) HasServiceDatabase() bool {
	return c.DatabaseServiceURL != ""
}
