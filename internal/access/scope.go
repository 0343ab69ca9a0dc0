package access

import (
	"context"
	"sync"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
)

type scopeKey struct{}

// requestScope はリクエスト内で解決済みのAccessStatusを保持する。
// 同一リクエスト内の並行呼び出しに備えてロックで保護する。
type requestScope struct {
	mu       sync.Mutex
	statuses map[string]model.AccessStatus
}

// WithRequestScope はリクエスト単位のメモ化領域をコンテキストに設定する。
func WithRequestScope(ctx context.Context) context.Context {
	if scopeFromContext(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, &requestScope{
		statuses: make(map[string]model.AccessStatus),
	})
}

func scopeFromContext(ctx context.Context) *requestScope {
	s, _ := ctx.Value(scopeKey{}).(*requestScope)
	return s
}

func (s *requestScope) get(userID string) (model.AccessStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.statuses[userID]
	return status, ok
}

func (s *requestScope) put(userID string, status model.AccessStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[userID] = status
}
