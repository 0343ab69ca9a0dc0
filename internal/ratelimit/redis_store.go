package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementScript は加算と有効期限の設定をRedis側で原子的に行う。
// 戻り値は {加算後のカウント, 残りミリ秒}。
var incrementScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore はRedisでカウンタを保持するStore。複数インスタンス間で共有できる。
// ウィンドウの終了はキーのTTLで表現するため、スイープは不要。
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore は新しいRedisStoreを生成する。
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisClient はREDIS_URL形式の接続文字列からクライアントを生成する。
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":" + key
}

// Get は現在のエントリを返す。キーが存在しない場合はnilを返す。
func (s *RedisStore) Get(ctx context.Context, key string, now time.Time) (*Entry, error) {
	k := s.key(key)

	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, k)
	ttlCmd := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read rate limit entry: %w", err)
	}

	count, err := getCmd.Int()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate limit count: %w", err)
	}

	ttl := ttlCmd.Val()
	if ttl <= 0 {
		return nil, nil
	}

	return &Entry{Count: count, ResetAt: now.Add(ttl)}, nil
}

// Increment はカウンタを1加算し、加算後のエントリを返す。
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Entry, error) {
	res, err := incrementScript.Run(ctx, s.client, []string{s.key(key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to increment rate limit entry: %w", err)
	}
	return entryFromScript(res, now)
}

// Delete はキーを削除する。
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete rate limit entry: %w", err)
	}
	return nil
}

// entryFromScript はincrementScriptの戻り値をEntryに変換する。
func entryFromScript(res []int64, now time.Time) (Entry, error) {
	if len(res) != 2 {
		return Entry{}, fmt.Errorf("unexpected rate limit script result: %v", res)
	}
	return Entry{
		Count:   int(res[0]),
		ResetAt: now.Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}

// compile-time interface check
var _ Store = (*RedisStore)(nil)
