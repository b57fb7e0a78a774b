// Package route classifies backend API URLs into the response kinds the
// interceptor knows how to rewrite.
package route

import (
	"fmt"
	"net/url"
	"regexp"
)

// Route is the classification tag of a request URL.
type Route string

const (
	// None marks a URL the interceptor must leave alone.
	None Route = "none"
	// Player marks a single-item playback response.
	Player Route = "player"
	// Search marks a ranked search result response.
	Search Route = "search"
)

// rePath matches the two innertube endpoints of interest. The leftmost
// occurrence wins if a path ever carries both.
var rePath = regexp.MustCompile(`/youtubei/v1/(player|search)`)

// Classify returns the route of u, looking at the path only.
func Classify(u *url.URL) Route {
	if u == nil {
		return None
	}
	m := rePath.FindStringSubmatch(u.Path)
	if m == nil {
		return None
	}
	return Route(m[1])
}

// ClassifyString parses raw and classifies it. Unparsable input is None.
func ClassifyString(raw string) Route {
	u, err := url.Parse(raw)
	if err != nil {
		return None
	}
	return Classify(u)
}

// Parse converts an API/tool argument into a Route.
func Parse(s string) (Route, error) {
	switch r := Route(s); r {
	case Player, Search, None:
		return r, nil
	default:
		return None, fmt.Errorf("route: unknown route %q", s)
	}
}

// Valid reports whether r is a route the transform engine handles.
func (r Route) Valid() bool {
	return r == Player || r == Search
}

func (r Route) String() string { return string(r) }

// Patterns returns the CDP URL globs covering every transformable route.
func Patterns() []string {
	return []string{
		"*/youtubei/v1/player*",
		"*/youtubei/v1/search*",
	}
}
