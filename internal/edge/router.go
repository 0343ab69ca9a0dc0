package edge

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"golang.org/x/net/idna"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/identity"
)

// Action は判定後の処理種別。
type Action string

const (
	ActionPass     Action = "pass"
	ActionRewrite  Action = "rewrite"
	ActionRedirect Action = "redirect"
)

// Decision は1リクエストに対するルーティング判定。
type Decision struct {
	Surface Surface
	Action  Action
	// Target はリライト先のパス、またはリダイレクト先のURL。
	Target string
}

// DecisionRecorder は判定結果を記録するインターフェース。
type DecisionRecorder interface {
	RecordEdgeDecision(surface, action string)
}

// Config はEdgeRouterの設定。
type Config struct {
	// AppHost はアプリケーションホスト（ポートを含んでもよい）。
	AppHost string
	// AppSubdomain はアプリケーションホストとみなすサブドメイン（例: "tool"）。
	AppSubdomain string
	// Scheme はクロスドメインリダイレクトに使うスキーム。
	Scheme string
}

// Router はルート表に従ってリクエストを分類する。
type Router struct {
	table       Table
	appHost     string
	appHostname string
	appPrefix   string
	scheme      string
	recorder    DecisionRecorder
}

// NewRouter は新しいRouterを生成する。recorderはnil可。
func NewRouter(cfg Config, table Table, recorder DecisionRecorder) *Router {
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}
	var prefix string
	if cfg.AppSubdomain != "" {
		prefix = strings.ToLower(cfg.AppSubdomain) + "."
	}
	return &Router{
		table:       table,
		appHost:     cfg.AppHost,
		appHostname: normalizeHost(cfg.AppHost),
		appPrefix:   prefix,
		scheme:      scheme,
		recorder:    recorder,
	}
}

// Classify はホスト名からSurfaceを判定する。
func (rt *Router) Classify(host string) Surface {
	h := normalizeHost(host)
	if h == "" {
		return SurfaceMarketing
	}
	if h == rt.appHostname || (rt.appPrefix != "" && strings.HasPrefix(h, rt.appPrefix)) {
		return SurfaceApp
	}
	return SurfaceMarketing
}

// Decide はリクエストに対する判定を返す。リクエストは変更しない。
func (rt *Router) Decide(r *http.Request) Decision {
	surface := rt.Classify(r.Host)
	path := r.URL.Path
	if path == "" {
		path = "/"
	}

	rule := rt.table.Lookup(surface, path)

	if rule.RequiresAuth && identity.FromContext(r.Context()) == nil {
		return Decision{Surface: surface, Action: ActionRedirect, Target: SignInPath}
	}
	if rule.RedirectToApp {
		target := rt.scheme + "://" + rt.appHost + path
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		return Decision{Surface: surface, Action: ActionRedirect, Target: target}
	}
	if rule.RewriteTo != "" {
		return Decision{Surface: surface, Action: ActionRewrite, Target: rule.RewriteTo}
	}
	return Decision{Surface: surface, Action: ActionPass}
}

// Middleware は判定に従ってリダイレクトまたはリライトを行うミドルウェアを返す。
// Identityを注入するミドルウェアの後に配置する必要がある。
func (rt *Router) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := rt.Decide(r)
		if rt.recorder != nil {
			rt.recorder.RecordEdgeDecision(string(d.Surface), string(d.Action))
		}

		switch d.Action {
		case ActionRedirect:
			slog.Debug("edge redirect",
				slog.String("surface", string(d.Surface)),
				slog.String("path", r.URL.Path),
				slog.String("target", d.Target),
			)
			http.Redirect(w, r, d.Target, http.StatusTemporaryRedirect)
			return
		case ActionRewrite:
			// クエリ文字列はr.URL.RawQueryにそのまま残る
			u := *r.URL
			u.Path = d.Target
			u.RawPath = ""
			r2 := r.Clone(r.Context())
			r2.URL = &u
			next.ServeHTTP(w, r2)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// normalizeHost はポートを除去し、小文字化・IDNA変換したホスト名を返す。
func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return ""
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return host
	}
	return ascii
}
