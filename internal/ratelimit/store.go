// Package ratelimit は識別子ごとの固定ウィンドウ方式のレート制限を提供する。
//
// カウンタの保持先はStoreインターフェースで差し替えられる。
// 単一プロセスではMemoryStore、複数インスタンスではRedisStoreを使う。
package ratelimit

import (
	"context"
	"time"
)

// Entry は識別子ごとのウィンドウ内の試行回数を表す。
type Entry struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"resetAt"`
}

// Expired は指定時刻においてウィンドウが終了しているかどうかを返す。
// ResetAtちょうどはまだウィンドウ内として扱う。
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ResetAt)
}

// Store はレート制限カウンタの永続化インターフェース。
// Incrementは「期限切れなら新規ウィンドウ、そうでなければ加算」を1つの原子的操作として行うこと。
type Store interface {
	// Get は現在のエントリを返す。存在しないか期限切れの場合はnilを返す。
	Get(ctx context.Context, key string, now time.Time) (*Entry, error)
	// Increment はカウンタを1加算し、加算後のエントリを返す。
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Entry, error)
	// Delete はエントリを即座に削除する。
	Delete(ctx context.Context, key string) error
}
