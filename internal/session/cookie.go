// Package session はサイトアクセスCookieの発行・破棄と、
// IdPセッションとの整合性を検証するSessionValidatorを提供する。
//
// site_access_tokenはIdPのセッションを置き換えるものではなく、
// 改ざんや古いクライアント状態を検出するための二次的な層として扱う。
package session

import "net/http"

const (
	// AccessCookieName はサイトアクセスCookieの名前。値はIdentityのユーザーID。
	AccessCookieName = "site_access_token"
	// LegacyCookieName は旧バージョンのCookie名。新規には発行せず、破棄のみ行う。
	LegacyCookieName = "site_access"
)

// CookieConfig はCookie属性の設定。
type CookieConfig struct {
	Domain string
	Secure bool
	MaxAge int // 秒
}

// SetAccessCookie はサイトアクセスCookieを設定する。
func SetAccessCookie(w http.ResponseWriter, cfg CookieConfig, userID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    userID,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   cfg.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAccessCookies はサイトアクセスCookieと旧Cookieを両方破棄する。
func ClearAccessCookies(w http.ResponseWriter, cfg CookieConfig) {
	for _, name := range []string{AccessCookieName, LegacyCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   cfg.Domain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   cfg.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
