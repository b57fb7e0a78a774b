package intercept

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// hopHeaders are request headers that identify the proxy's own client and
// must not reach the upstream site.
var hopHeaders = []string{
	"X-Api-Key",
	"Authorization",
	"X-Forwarded-For",
	"X-Forwarded-Host",
	"X-Forwarded-Proto",
	"Forwarded",
}

// ReverseProxy forwards requests to target through an intercepting
// Transport over base. Inbound paths are appended to target's path.
func (i *Interceptor) ReverseProxy(target *url.URL, base http.RoundTripper) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = target.Host
			for _, h := range hopHeaders {
				pr.Out.Header.Del(h)
			}
		},
		Transport: i.transport(base, SurfaceProxy),
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if errors.Is(err, context.Canceled) {
				slog.Debug("proxy: client went away", "path", r.URL.Path)
				w.WriteHeader(499)
				return
			}
			slog.Warn("proxy: upstream request failed", "path", r.URL.Path, "error", err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}
