package intercept

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/use-agent/tubeshim/metrics"
	"github.com/use-agent/tubeshim/route"
)

// Transport is an http.RoundTripper that rewrites matched responses and
// returns everything else exactly as the base transport produced it.
type Transport struct {
	ic      *Interceptor
	base    http.RoundTripper
	surface string
}

// Transport wraps base. A nil base uses http.DefaultTransport.
func (i *Interceptor) Transport(base http.RoundTripper) *Transport {
	return i.transport(base, SurfaceTransport)
}

func (i *Interceptor) transport(base http.RoundTripper, surface string) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{ic: i, base: base, surface: surface}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	// ── 1. Delegate ──────────────────────────────────────────────────
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// ── 2. Match route, status and eligibility ───────────────────────
	kind := t.ic.Match(resp.StatusCode, req.URL)
	if kind == route.None || req.Method == http.MethodHead {
		t.ic.observe(t.surface, route.Classify(req.URL), metrics.OutcomePassthrough)
		return resp, nil
	}

	// ── 3. Read the full body ────────────────────────────────────────
	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("intercept: read %s body: %w", kind, err)
	}

	// ── 4. Rewrite (falls back to raw) ───────────────────────────────
	body, outcome := t.ic.Rewrite(req.Context(), kind, resp.Header, raw)
	t.ic.observe(t.surface, kind, outcome)

	// ── 5. Substitute a new response value ───────────────────────────
	if outcome == metrics.OutcomeFallback {
		return replaceBody(resp, body, false), nil
	}
	return replaceBody(resp, body, true), nil
}

// replaceBody returns a copy of resp carrying body. Status, protocol,
// trailers and headers are kept. With resize, Content-Length follows the
// new body; otherwise the original header set is returned unchanged.
func replaceBody(resp *http.Response, body []byte, resize bool) *http.Response {
	out := *resp
	out.Header = resp.Header.Clone()
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	if resize {
		if out.Header.Get("Content-Length") != "" {
			out.Header.Set("Content-Length", strconv.Itoa(len(body)))
		}
		out.ContentLength = int64(len(body))
	}
	out.Body = io.NopCloser(bytes.NewReader(body))
	return &out
}
