// Package intercept decorates a page's networking surfaces so matched
// backend responses are rewritten before the page reads them.
//
// One Interceptor holds the policy. Transport applies it to call-in,
// response-out clients (http.RoundTripper); Hijacker applies it to a live
// browser page through a rod HijackRouter; ReverseProxy exposes it to a
// web view that points at this service instead of the site.
package intercept

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/use-agent/tubeshim/contentcoding"
	"github.com/use-agent/tubeshim/metrics"
	"github.com/use-agent/tubeshim/models"
	"github.com/use-agent/tubeshim/route"
	"github.com/use-agent/tubeshim/transform"
)

// Surfaces label where an intercepted call came from.
const (
	SurfaceTransport = "transport"
	SurfaceHijack    = "hijack"
	SurfaceProxy     = "proxy"
)

// Eligibility is the read-only view of the shell's settings.
type Eligibility interface {
	HideShorts() bool
}

// Recorder receives interception events. *metrics.Metrics implements it.
type Recorder interface {
	ObserveIntercept(surface, route, outcome string)
	ObserveTransform(route string, d time.Duration, removed int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveIntercept(string, string, string)     {}
func (nopRecorder) ObserveTransform(string, time.Duration, int) {}

type noFlags struct{}

func (noFlags) HideShorts() bool { return false }

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithRecorder sends interception events to r.
func WithRecorder(r Recorder) Option {
	return func(i *Interceptor) {
		if r != nil {
			i.rec = r
		}
	}
}

// Interceptor decides which responses are rewritten and performs the
// rewrite. It is safe for concurrent use.
type Interceptor struct {
	flags Eligibility
	rec   Recorder
}

// New creates an Interceptor reading eligibility from flags. A nil flags
// treats every optional rewrite as disabled.
func New(flags Eligibility, opts ...Option) *Interceptor {
	if flags == nil {
		flags = noFlags{}
	}
	i := &Interceptor{flags: flags, rec: nopRecorder{}}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Match returns the route a response must be rewritten as, or route.None
// when it must pass through untouched.
func (i *Interceptor) Match(status int, u *url.URL) route.Route {
	if status != http.StatusOK {
		return route.None
	}
	kind := route.Classify(u)
	if kind == route.Search && !i.flags.HideShorts() {
		return route.None
	}
	return kind
}

// Rewrite transforms raw, a body carrying the content coding named in
// header. On any failure it logs and returns raw unchanged with the
// fallback outcome.
func (i *Interceptor) Rewrite(ctx context.Context, kind route.Route, header http.Header, raw []byte) ([]byte, string) {
	start := time.Now()

	out, removed, err := rewrite(kind, header.Get("Content-Encoding"), raw)
	if err != nil {
		slog.WarnContext(ctx, "transform failed, passing original body through",
			"route", kind.String(),
			"code", models.TransformCode(err),
			"bytes", len(raw),
			"error", err,
		)
		return raw, metrics.OutcomeFallback
	}

	i.rec.ObserveTransform(kind.String(), time.Since(start), removed)
	slog.DebugContext(ctx, "response transformed",
		"route", kind.String(),
		"before", len(raw),
		"after", len(out),
		"removed", removed,
	)
	return out, metrics.OutcomeTransformed
}

func (i *Interceptor) observe(surface string, kind route.Route, outcome string) {
	i.rec.ObserveIntercept(surface, kind.String(), outcome)
}

func rewrite(kind route.Route, coding string, raw []byte) ([]byte, int, error) {
	if !contentcoding.Supported(coding) {
		return nil, 0, models.NewTransformError(
			models.ErrCodeUnsupportedEncoding, kind.String(), "cannot decode content coding "+coding, nil,
		)
	}

	decoded, err := contentcoding.Decode(coding, raw)
	if err != nil {
		return nil, 0, models.NewTransformError(
			models.ErrCodeUnsupportedEncoding, kind.String(), "decode body", err,
		)
	}

	var (
		out     []byte
		removed int
	)
	if kind == route.Search {
		out, removed, err = transform.SearchWithStats(decoded)
	} else {
		out, err = transform.Apply(kind, decoded)
	}
	if err != nil {
		return nil, 0, err
	}

	encoded, err := contentcoding.Encode(coding, out)
	if err != nil {
		return nil, 0, models.NewTransformError(
			models.ErrCodeUnsupportedEncoding, kind.String(), "encode body", err,
		)
	}
	return encoded, removed, nil
}
