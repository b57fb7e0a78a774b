// Package browser runs a managed Chromium tab whose backend calls go
// through the interceptor.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/tubeshim/config"
	"github.com/use-agent/tubeshim/intercept"
	"github.com/use-agent/tubeshim/models"
	"github.com/ysmood/gson"
)

// killer is the process handle of a launched browser.
type killer interface {
	Kill()
}

// Result is what a navigation reports back.
type Result struct {
	FinalURL string
	Title    string
}

// Session owns one browser and one page with interception installed.
// Navigate calls are serialized; Stats is safe for concurrent use.
type Session struct {
	cfg     config.BrowserConfig
	browser *rod.Browser
	page    *rod.Page
	router  *rod.HijackRouter
	proc    killer // launched by us, so Close kills it; nil when attached

	navMu      sync.Mutex
	urlMu      sync.RWMutex
	currentURL string
	hijacked   atomic.Int64
	closeOnce  sync.Once
}

// NewSession launches (or attaches to) a browser, installs the hijack
// router on a fresh page and loads cfg.HomeURL.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Launch or attach
//  2. Open page
//  3. Stealth injection      – before any navigation
//  4. Extra headers
//  5. Hijack mount           – before any navigation
//  6. Home navigation
//
// Calls the page makes before step 5 completes are not intercepted.
func NewSession(cfg config.BrowserConfig, ic *intercept.Interceptor, client *http.Client) (*Session, error) {
	s := &Session{cfg: cfg}

	// ── 1. Launch or attach ───────────────────────────────────────────
	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := newLauncher(cfg)
		u, err := l.Launch()
		if err != nil {
			return nil, models.NewAPIError(models.ErrCodeBrowserUnavailable, "failed to launch browser", err)
		}
		controlURL = u
		s.proc = l
		slog.Info("browser launched", "controlURL", controlURL)
	}

	if err := s.connect(controlURL); err != nil {
		return nil, models.NewAPIError(models.ErrCodeBrowserUnavailable, "failed to connect to browser", err)
	}

	// ── 2. Open page ──────────────────────────────────────────────────
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.closeBrowser()
		return nil, models.NewAPIError(models.ErrCodeBrowserUnavailable, "failed to open page", err)
	}
	s.page = page

	// ── 3. Stealth injection ──────────────────────────────────────────
	if cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	// ── 4. Extra headers ──────────────────────────────────────────────
	if cfg.Language != "" {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": cfg.Language}),
		}.Call(page)
	}

	// ── 5. Mount hijack router ────────────────────────────────────────
	s.router = page.HijackRequests()
	handler := countHijacks(&s.hijacked, ic.Hijacker(client, s.cookies))
	for _, pattern := range ic.Patterns() {
		if err := s.router.Add(pattern, "", handler); err != nil {
			s.Close()
			return nil, models.NewAPIError(models.ErrCodeBrowserUnavailable, "failed to install hijack router", err)
		}
	}
	// router.Run() blocks until router.Stop().
	go s.router.Run()
	slog.Info("hijack router installed", "patterns", ic.Patterns())

	// ── 6. Home navigation ────────────────────────────────────────────
	if cfg.HomeURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.NavigationTimeout)
		defer cancel()
		if _, err := s.Navigate(ctx, cfg.HomeURL); err != nil {
			slog.Warn("home navigation failed", "url", cfg.HomeURL, "error", err)
		}
	}

	return s, nil
}

func newLauncher(cfg config.BrowserConfig) *launcher.Launcher {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "TranslateUI")
	l.Set(flags.Flag("autoplay-policy"), "no-user-gesture-required")
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("no-first-run"))
	return l
}

// Navigate loads rawURL in the managed page and waits for the DOM to
// settle.
func (s *Session) Navigate(ctx context.Context, rawURL string) (*Result, error) {
	s.navMu.Lock()
	defer s.navMu.Unlock()

	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}
	p := s.page.Context(ctx)

	if err := p.Navigate(rawURL); err != nil {
		return nil, categorizeError(err, "navigation failed")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding", "error", err)
	}

	res := &Result{
		FinalURL: evalStringOrEmpty(p, `() => window.location.href`),
		Title:    evalStringOrEmpty(p, `() => document.title`),
	}
	if res.FinalURL == "" {
		res.FinalURL = rawURL
	}

	s.urlMu.Lock()
	s.currentURL = res.FinalURL
	s.urlMu.Unlock()

	slog.Info("navigated", "url", rawURL, "finalURL", res.FinalURL)
	return res, nil
}

// Stats returns a snapshot of the session state.
func (s *Session) Stats() models.BrowserStats {
	s.urlMu.RLock()
	defer s.urlMu.RUnlock()
	return models.BrowserStats{
		Enabled:    true,
		CurrentURL: s.currentURL,
		Hijacked:   s.hijacked.Load(),
	}
}

// Close stops interception, closes the page and, when the browser was
// launched by this session, kills it. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		slog.Info("browser session shutting down")
		if s.router != nil {
			_ = s.router.Stop()
		}
		if s.page != nil {
			_ = s.page.Close()
		}
		s.closeBrowser()
		slog.Info("browser session shutdown complete")
	})
}

// connect attaches to controlURL. A browser launched by this session is
// killed when the connection cannot be made.
func (s *Session) connect(controlURL string) error {
	s.browser = rod.New().ControlURL(controlURL)
	if err := s.browser.Connect(); err != nil {
		if s.proc != nil {
			s.proc.Kill()
		}
		return err
	}
	return nil
}

func (s *Session) closeBrowser() {
	if s.proc == nil {
		return
	}
	_ = s.browser.Close()
	s.proc.Kill()
}

// cookies returns the page's cookies for u, which paused requests lack.
func (s *Session) cookies(u *url.URL) ([]*proto.NetworkCookie, error) {
	return s.page.Cookies([]string{u.String()})
}

func countHijacks(n *atomic.Int64, next func(*rod.Hijack)) func(*rod.Hijack) {
	return func(h *rod.Hijack) {
		n.Add(1)
		next(h)
	}
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed APIErrors so the API layer
// can map them to HTTP status codes.
func categorizeError(err error, msg string) *models.APIError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewAPIError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewAPIError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewAPIError(models.ErrCodeNavigation, msg, err)
	}
}
