package transform

import (
	"github.com/use-agent/tubeshim/models"
	"github.com/use-agent/tubeshim/route"
)

// Func rewrites one response body.
type Func func(body []byte) ([]byte, error)

// For returns the transform of kind, or nil when the route has none.
func For(kind route.Route) Func {
	switch kind {
	case route.Player:
		return Player
	case route.Search:
		return Search
	default:
		return nil
	}
}

// Apply rewrites body with the transform of kind.
func Apply(kind route.Route, body []byte) ([]byte, error) {
	fn := For(kind)
	if fn == nil {
		return nil, models.NewTransformError(
			models.ErrCodeUnsupportedRoute, kind.String(), "route has no transform", nil,
		)
	}
	return fn(body)
}
