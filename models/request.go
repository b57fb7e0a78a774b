package models

// ClassifyRequest is the payload for POST /api/v1/classify.
type ClassifyRequest struct {
	// URL is the request URL to classify. Required.
	URL string `json:"url" binding:"required"`
}

// TransformRequest is the payload for POST /api/v1/transform.
type TransformRequest struct {
	// Route selects the transform: "player" or "search". Required.
	Route string `json:"route" binding:"required,oneof=player search"`

	// Body is the raw response text to rewrite. Required.
	Body string `json:"body" binding:"required"`
}

// SettingsUpdate is the payload for PUT /api/v1/settings. Nil fields are
// left unchanged.
type SettingsUpdate struct {
	HideShorts *bool `json:"hide_shorts"`
}

// NavigateRequest is the payload for POST /api/v1/navigate.
type NavigateRequest struct {
	// URL is the page the managed browser tab should load. Required.
	URL string `json:"url" binding:"required,url"`

	// Timeout is the navigation deadline in seconds.
	// Default: 30. Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`
}

// Defaults applies default values to unset fields.
func (r *NavigateRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = 30
	}
}
