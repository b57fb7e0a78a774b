package models

// Settings is the shell-owned preference set the interceptor reads.
type Settings struct {
	HideShorts bool `json:"hide_shorts"`
}

// SettingsResponse is the response for GET/PUT /api/v1/settings.
type SettingsResponse struct {
	Success  bool         `json:"success"`
	Settings Settings     `json:"settings"`
	Error    *ErrorDetail `json:"error,omitempty"`
}

// ClassifyResponse is the response for POST /api/v1/classify.
type ClassifyResponse struct {
	Success bool         `json:"success"`
	Route   string       `json:"route,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// TransformResponse is the response for POST /api/v1/transform.
type TransformResponse struct {
	Success bool   `json:"success"`
	Route   string `json:"route"`

	// Body is the rewritten document. Empty when Success is false.
	Body string `json:"body,omitempty"`

	// Removed counts the short-form entries dropped by a search transform.
	Removed int `json:"removed,omitempty"`

	Timing TimingInfo   `json:"timing"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// NavigateResponse is the response for POST /api/v1/navigate.
type NavigateResponse struct {
	Success  bool         `json:"success"`
	FinalURL string       `json:"final_url,omitempty"`
	Title    string       `json:"title,omitempty"`
	Timing   TimingInfo   `json:"timing"`
	Error    *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string            `json:"status"` // "healthy" or "degraded"
	Uptime       string            `json:"uptime"`
	Settings     Settings          `json:"settings"`
	Interception InterceptionStats `json:"interception"`
	Browser      BrowserStats      `json:"browser"`
	Version      string            `json:"version"`
}

// InterceptionStats summarises interceptor outcomes since startup.
type InterceptionStats struct {
	Transformed float64 `json:"transformed"`
	Fallback    float64 `json:"fallback"`
	Passthrough float64 `json:"passthrough"`
}

// BrowserStats reports the state of the managed browser session.
type BrowserStats struct {
	Enabled    bool   `json:"enabled"`
	CurrentURL string `json:"current_url,omitempty"`
	Hijacked   int64  `json:"hijacked"`
}

// ErrorResponse is the body of middleware rejections and other failures
// that carry no endpoint-specific payload.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}
