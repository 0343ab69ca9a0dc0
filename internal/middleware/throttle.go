package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/identity"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
)

// ThrottleConfig はAPI全般のスロットリング設定を保持する。
type ThrottleConfig struct {
	Rate            rate.Limit    // 補充レート（req/sec）
	Burst           int           // バーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultThrottleConfig はデフォルトのスロットリング設定を返す。
// API全般 120 req/min/identity
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		Rate:            rate.Limit(120.0 / 60.0),
		Burst:           120,
		CleanupInterval: 5 * time.Minute,
	}
}

// ThrottleRecorder はスロットリングの判定を記録するインターフェース。
type ThrottleRecorder interface {
	RecordRateLimitDecision(limiter string, allowed bool)
}

// keyLimiter はキーごとのリミッターとアクセス時刻を保持する。
type keyLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Throttle はIdentity（匿名の場合はクライアントIP）ごとのトークンバケットで
// APIリクエストを制限する。アクセスコード引き換えの固定ウィンドウ制限とは独立に動作する。
type Throttle struct {
	config   ThrottleConfig
	recorder ThrottleRecorder

	mu       sync.Mutex
	limiters map[string]*keyLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewThrottle は新しいThrottleを生成する。recorderはnil可。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewThrottle(config ThrottleConfig, recorder ThrottleRecorder) *Throttle {
	t := &Throttle{
		config:   config,
		recorder: recorder,
		limiters: make(map[string]*keyLimiter),
		stopCh:   make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go t.cleanupLoop()
	}

	return t
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (t *Throttle) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// Middleware はスロットリングミドルウェアを返す。
// Identityを注入するミドルウェアの後に配置する。
func (t *Throttle) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := throttleKey(r)
			allowed := t.limiterFor(key).Allow()
			if t.recorder != nil {
				t.recorder.RecordRateLimitDecision("api", allowed)
			}

			if !allowed {
				slog.Warn("rate limit exceeded",
					slog.String("key", key),
					slog.String("limit_type", "api"),
				)
				writeThrottleResponse(w, t.config.Rate)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimiterCount は現在管理されているリミッターのエントリ数を返す。
func (t *Throttle) LimiterCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.limiters)
}

func throttleKey(r *http.Request) string {
	if id := identity.FromContext(r.Context()); id != nil {
		return "user:" + id.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func (t *Throttle) limiterFor(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	if kl, ok := t.limiters[key]; ok {
		kl.lastAccess = time.Now()
		return kl.limiter
	}

	limiter := rate.NewLimiter(t.config.Rate, t.config.Burst)
	t.limiters[key] = &keyLimiter{limiter: limiter, lastAccess: time.Now()}
	return limiter
}

func (t *Throttle) cleanupLoop() {
	ticker := time.NewTicker(t.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.cleanup(time.Now())
		case <-t.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (t *Throttle) cleanup(now time.Time) {
	ttl := t.config.CleanupInterval * 2

	t.mu.Lock()
	defer t.mu.Unlock()
	for key, kl := range t.limiters {
		if now.Sub(kl.lastAccess) > ttl {
			delete(t.limiters, key)
		}
	}
}

// writeThrottleResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeThrottleResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 60
	if r > 0 {
		retryAfterSec = max(int(math.Ceil(1.0/float64(r))), 1)
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
