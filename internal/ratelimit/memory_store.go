package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore はプロセス内のマップでカウンタを保持するStore。
// プロセス再起動や複数インスタンス間での精度は保証しない。
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry

	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewMemoryStore は新しいMemoryStoreを生成する。
// sweepIntervalが正の場合、バックグラウンドで期限切れエントリを定期的に削除する。
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*Entry),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	if sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	}

	return s
}

// Stop はスイープのバックグラウンドゴルーチンを停止する。複数回呼んでも安全。
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Get は現在のエントリのコピーを返す。存在しないか期限切れの場合はnilを返す。
func (s *MemoryStore) Get(_ context.Context, key string, now time.Time) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.Expired(now) {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// Increment はカウンタを1加算する。期限切れまたは未登録なら新しいウィンドウを開始する。
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration, now time.Time) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.Expired(now) {
		e = &Entry{Count: 1, ResetAt: now.Add(window)}
		s.entries[key] = e
		return *e, nil
	}

	e.Count++
	return *e, nil
}

// Delete はエントリを削除する。
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len は現在保持しているエントリ数を返す。テストおよびメトリクス用。
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep は指定時刻で期限切れのエントリを削除し、削除件数を返す。
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// sweepLoop はバックグラウンドで期限切れエントリを定期的に削除する。
func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(s.now())
		case <-s.stopCh:
			return
		}
	}
}

// compile-time interface check
var _ Store = (*MemoryStore)(nil)
