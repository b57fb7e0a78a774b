package intercept

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/tubeshim/route"
)

// CookieSource returns the browser cookies that apply to u.
type CookieSource func(u *url.URL) ([]*proto.NetworkCookie, error)

// pausedRequest is a browser request held by the hijack router until it is
// continued, fulfilled or failed.
type pausedRequest interface {
	URL() *url.URL
	Request() *http.Request
	Continue()
	Load(client *http.Client) error
	Fail(reason proto.NetworkErrorReason)
	OnError(fn func(error))
}

// rodPaused adapts *rod.Hijack to pausedRequest.
type rodPaused struct{ h *rod.Hijack }

func (p rodPaused) URL() *url.URL          { return p.h.Request.URL() }
func (p rodPaused) Request() *http.Request { return p.h.Request.Req() }
func (p rodPaused) Continue()              { p.h.ContinueRequest(&proto.FetchContinueRequest{}) }

func (p rodPaused) Load(client *http.Client) error {
	return p.h.LoadResponse(client, true)
}

func (p rodPaused) Fail(reason proto.NetworkErrorReason) { p.h.Response.Fail(reason) }
func (p rodPaused) OnError(fn func(error))               { p.h.OnError = fn }

// Patterns returns the CDP URL globs a HijackRouter must subscribe to.
func (i *Interceptor) Patterns() []string {
	return route.Patterns()
}

// HijackClient returns the client paused browser requests are completed
// with. Its transport is an intercepting Transport over base, and
// redirects are handed back to the page instead of being followed.
func (i *Interceptor) HijackClient(base http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: i.transport(base, SurfaceHijack),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Hijacker returns a rod hijack handler. Requests that would never be
// rewritten continue inside the browser. The rest are loaded through
// client, carrying the page's cookies from cookies, and fulfilled with the
// (possibly rewritten) response. A network failure fails the paused
// request.
func (i *Interceptor) Hijacker(client *http.Client, cookies CookieSource) func(*rod.Hijack) {
	return func(h *rod.Hijack) {
		i.handlePaused(rodPaused{h}, client, cookies)
	}
}

func (i *Interceptor) handlePaused(p pausedRequest, client *http.Client, cookies CookieSource) {
	u := p.URL()

	// ── 1. Eligibility: the status is unknown yet, assume success ─────
	kind := i.Match(http.StatusOK, u)
	if kind == route.None {
		p.Continue()
		return
	}

	p.OnError(func(err error) {
		slog.Warn("hijack: fulfill failed", "route", kind.String(), "url", u.String(), "error", err)
	})

	req := p.Request()

	// ── 2. Session: paused requests have no cookies attached yet ──────
	if cookies != nil {
		list, err := cookies(u)
		if err != nil {
			slog.Warn("hijack: cookie lookup failed, continuing in browser",
				"route", kind.String(),
				"url", u.String(),
				"error", err,
			)
			p.Continue()
			return
		}
		setCookieHeader(req.Header, list)
	}

	// ── 3. Coding: let the transport negotiate so Chrome gets identity bytes
	delHeaderFold(req.Header, "Accept-Encoding")

	// ── 4. Load and fulfill ───────────────────────────────────────────
	if err := p.Load(client); err != nil {
		slog.Warn("hijack: upstream request failed",
			"route", kind.String(),
			"url", u.String(),
			"error", err,
		)
		p.Fail(proto.NetworkErrorReasonFailed)
	}
}

// setCookieHeader writes list as the request's Cookie header. An existing
// header is left alone.
func setCookieHeader(h http.Header, list []*proto.NetworkCookie) {
	if len(list) == 0 || hasHeaderFold(h, "Cookie") {
		return
	}
	pairs := make([]string, 0, len(list))
	for _, c := range list {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	h.Set("Cookie", strings.Join(pairs, "; "))
}

// Paused request headers come from CDP as sent, not canonicalized.

func hasHeaderFold(h http.Header, name string) bool {
	for k := range h {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

func delHeaderFold(h http.Header, name string) {
	for k := range h {
		if strings.EqualFold(k, name) {
			delete(h, k)
		}
	}
}
