// Package cleanup は期限切れアクセスコードの自動削除ジョブを提供する。
// 引き換え済みのコードは監査のため残し、未使用のまま期限を過ぎたコードのみを
// 日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExpiredCodeDeleter は期限切れの未使用コードを削除するインターフェース。
// repository.AccessCodeRepositoryが満たす。
type ExpiredCodeDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Recorder は削除件数を記録するインターフェース。
type Recorder interface {
	RecordAccessCodesDeleted(count int64)
}

// CleanupJob は期限切れアクセスコードの削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	codes    ExpiredCodeDeleter
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time

	// Grace は期限切れから削除までの猶予期間（デフォルト: 24時間）。
	// 期限直後の問い合わせに対応できるよう、しばらく残しておく。
	Grace time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnil可。
func NewCleanupJob(codes ExpiredCodeDeleter, logger *slog.Logger, recorder Recorder) *CleanupJob {
	return &CleanupJob{
		codes:    codes,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
		Grace:    24 * time.Hour,
	}
}

// Run は猶予期間を超えて期限切れとなった未使用コードを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()
	cutoff := start.Add(-j.Grace)

	deletedCount, err := j.codes.DeleteExpired(ctx, cutoff)
	if err != nil {
		j.logger.Error("アクセスコードのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Time("cutoff", cutoff),
		)
		return fmt.Errorf("failed to clean up access codes: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordAccessCodesDeleted(deletedCount)
	}

	j.logger.Info("アクセスコードのクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。個々の失敗はログに残して継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil && ctx.Err() != nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
