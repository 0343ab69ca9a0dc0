package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// NewFrontendProxy はAPI以外のリクエストをフロントエンドに転送するハンドラーを返す。
// エッジルーティングで書き換えたパスをそのまま転送する。
// frontendURLが空の場合は404を返すハンドラーを返す。
func NewFrontendProxy(frontendURL string) (http.Handler, error) {
	if frontendURL == "" {
		return http.NotFoundHandler(), nil
	}

	target, err := url.Parse(frontendURL)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid frontend URL: %q", frontendURL)
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			// 元のHostを保持し、フロントエンド側でも面を判別できるようにする
			pr.Out.Host = pr.In.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Error("frontend proxy error",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	return proxy, nil
}
