package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Config は1つの制限対象に対するクォータ設定。
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Result はCheckの判定結果。
// クォータ不足はエラーではなくSuccess=falseでのみ表現する。
type Result struct {
	Success   bool      `json:"success"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// RetryAfter は次のウィンドウまでの待ち時間を秒単位で返す。最小1秒。
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds() + 0.999)
	if secs < 1 {
		return 1
	}
	return secs
}

// DecisionRecorder はレート制限の判定結果を記録するインターフェース。
type DecisionRecorder interface {
	RecordRateLimitDecision(limiter string, allowed bool)
}

// Limiter は固定ウィンドウ方式のレート制限を行う。
// 判定はStoreの原子的なIncrementに委ねるため、並行リクエストでも更新が失われない。
type Limiter struct {
	name     string
	store    Store
	recorder DecisionRecorder
	now      func() time.Time
}

// Option はLimiterの任意設定。
type Option func(*Limiter)

// WithClock は現在時刻の取得関数を差し替える。テスト用。
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithRecorder は判定結果の記録先を設定する。
func WithRecorder(r DecisionRecorder) Option {
	return func(l *Limiter) { l.recorder = r }
}

// NewLimiter は新しいLimiterを生成する。nameはログとメトリクスのラベルに使う。
func NewLimiter(name string, store Store, opts ...Option) *Limiter {
	l := &Limiter{
		name:  name,
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check は識別子の試行を1回記録し、クォータ内かどうかを返す。
// ストアの障害時はフェイルクローズ（Success=false）とし、エラーはログに記録する。
func (l *Limiter) Check(ctx context.Context, identifier string, cfg Config) Result {
	now := l.now()

	entry, err := l.store.Increment(ctx, identifier, cfg.Window, now)
	if err != nil {
		slog.Error("rate limit store failure",
			slog.String("limiter", l.name),
			slog.String("identifier", identifier),
			slog.String("error", err.Error()),
		)
		l.record(false)
		return Result{Success: false, Remaining: 0, ResetAt: now.Add(cfg.Window)}
	}

	if entry.Count > cfg.MaxAttempts {
		slog.Warn("rate limit exceeded",
			slog.String("limiter", l.name),
			slog.String("identifier", identifier),
			slog.Int("count", entry.Count),
		)
		l.record(false)
		return Result{Success: false, Remaining: 0, ResetAt: entry.ResetAt}
	}

	l.record(true)
	return Result{
		Success:   true,
		Remaining: cfg.MaxAttempts - entry.Count,
		ResetAt:   entry.ResetAt,
	}
}

// Reset は識別子のエントリを即座に削除する。
// 重要な操作の成功後に、それまでの失敗試行のペナルティを取り消すために使う。
func (l *Limiter) Reset(ctx context.Context, identifier string) {
	if err := l.store.Delete(ctx, identifier); err != nil {
		slog.Error("failed to reset rate limit",
			slog.String("limiter", l.name),
			slog.String("identifier", identifier),
			slog.String("error", err.Error()),
		)
	}
}

// Status は現在のエントリを変更せずに返す。存在しないか期限切れならnil。
func (l *Limiter) Status(ctx context.Context, identifier string) *Entry {
	entry, err := l.store.Get(ctx, identifier, l.now())
	if err != nil {
		slog.Error("failed to read rate limit status",
			slog.String("limiter", l.name),
			slog.String("identifier", identifier),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return entry
}

// Now はLimiterが使う現在時刻を返す。
func (l *Limiter) Now() time.Time {
	return l.now()
}

func (l *Limiter) record(allowed bool) {
	if l.recorder != nil {
		l.recorder.RecordRateLimitDecision(l.name, allowed)
	}
}
