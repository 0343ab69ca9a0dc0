// Package edge はホスト名に基づいてリクエストを分類し、
// ページやAPIのコードより前にリダイレクト・内部リライトを行う。
//
// 判定は宣言的なルート表で表現し、1リクエストにつき1回だけ評価する。
// 業務ロジックは持たない。
package edge

import "strings"

// Surface はリクエストの提供面。
type Surface string

const (
	// SurfaceApp はアプリケーションホスト（toolサブドメイン）。
	SurfaceApp Surface = "app"
	// SurfaceMarketing はそれ以外のホスト。
	SurfaceMarketing Surface = "marketing"
)

// Rule はパスのパターンと、それに一致した場合の扱い。
type Rule struct {
	// Pattern は文字列前方一致（Exactの場合は完全一致）で比較するパス。
	Pattern string
	Exact   bool
	// RequiresAuth がtrueの場合、Identityがなければサインインへリダイレクトする。
	RequiresAuth bool
	// RewriteTo が空でなければ、クエリ文字列を保ったまま内部的にパスを書き換える。
	RewriteTo string
	// RedirectToApp がtrueの場合、同じパスでアプリケーションホストへ外部リダイレクトする。
	RedirectToApp bool
}

func (r Rule) matches(path string) bool {
	if r.Exact {
		return path == r.Pattern
	}
	return strings.HasPrefix(path, r.Pattern)
}

// Table はSurfaceごとのルール列。先に一致したルールを採用し、
// いずれにも一致しない場合はデフォルトを使う。
type Table struct {
	App              []Rule
	AppDefault       Rule
	Marketing        []Rule
	MarketingDefault Rule
}

// 公開パス（認証不要）。
var publicPrefixes = []string{
	"/sign-in",
	"/sign-up",
	"/access",
	"/admin/forbidden",
	"/api/uploads",
}

// アプリケーション専用のパス。マーケティングホストで要求された場合はアプリケーションホストへ送る。
var reservedAppPrefixes = []string{
	"/planner",
	"/context",
	"/tools",
	"/settings",
	"/backlinks",
	"/wordpress",
	"/admin",
	"/account",
	"/access",
	"/sign-in",
	"/sign-up",
	"/dashboard",
}

const (
	// SignInPath は未認証時のリダイレクト先。
	SignInPath = "/sign-in"
	// DashboardPath はアプリケーションホストのルートのリライト先。
	DashboardPath = "/dashboard"
	// MarketingHomePath はマーケティングホストのルートのリライト先。
	MarketingHomePath = "/marketing-home"
)

// DefaultTable は標準のルート表を返す。
//
// アプリケーションホストの/api/配下は各ハンドラが自前で認証し、
// サインインへのリダイレクトではなく401のJSONを返すため、ここでは素通しする。
func DefaultTable() Table {
	var app []Rule
	for _, p := range publicPrefixes {
		app = append(app, Rule{Pattern: p})
	}
	app = append(app,
		Rule{Pattern: "/api/"},
		Rule{Pattern: "/", Exact: true, RequiresAuth: true, RewriteTo: DashboardPath},
	)

	marketing := []Rule{
		{Pattern: "/", Exact: true, RewriteTo: MarketingHomePath},
	}
	for _, p := range reservedAppPrefixes {
		marketing = append(marketing, Rule{Pattern: p, RedirectToApp: true})
	}

	return Table{
		App:              app,
		AppDefault:       Rule{RequiresAuth: true},
		Marketing:        marketing,
		MarketingDefault: Rule{},
	}
}

// Lookup はSurfaceとパスに一致するルールを返す。
func (t Table) Lookup(surface Surface, path string) Rule {
	rules, fallback := t.Marketing, t.MarketingDefault
	if surface == SurfaceApp {
		rules, fallback = t.App, t.AppDefault
	}
	for _, rule := range rules {
		if rule.matches(path) {
			return rule
		}
	}
	return fallback
}
