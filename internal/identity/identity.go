// Package identity は外部IdPが発行したセッショントークンを検証し、
// リクエストコンテキストに認証済みIdentityを注入する。
package identity

import (
	"context"
	"net/http"
	"strings"
)

// Identity は外部IdPが発行した認証済み呼び出し元。
// リクエスト中は不変として扱う。
type Identity struct {
	UserID string
	Email  string
}

type contextKey string

var identityContextKey = contextKey("identity")

// WithIdentity はコンテキストにIdentityを注入する。
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// FromContext はコンテキストからIdentityを取得する。未認証の場合はnilを返す。
func FromContext(ctx context.Context) *Identity {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || id == nil || id.UserID == "" {
		return nil
	}
	return id
}

// TokenFromRequest はAuthorizationヘッダー（Bearer）またはCookieからトークンを取り出す。
// ヘッダーを優先する。
func TokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookieName == "" {
		return ""
	}
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
