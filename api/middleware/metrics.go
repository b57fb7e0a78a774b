package middleware

import (
	"github.com/gin-gonic/gin"
)

// Rejection reasons reported by Auth and RateLimiter.
const (
	RejectMissingKey  = "missing_key"
	RejectInvalidKey  = "invalid_key"
	RejectRateLimited = "rate_limited"
)

// Observer receives one event per completed request and one per request
// refused before it reached a handler.
type Observer interface {
	ObserveHTTP(route string, status int)
	ObserveRejection(reason string)
}

type nopObserver struct{}

func (nopObserver) ObserveHTTP(string, int) {}
func (nopObserver) ObserveRejection(string) {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}

// Metrics counts requests by route template and status. Requests that
// matched no route are counted under "unmatched".
func Metrics(o Observer) gin.HandlerFunc {
	o = observerOrNop(o)
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		o.ObserveHTTP(route, c.Writer.Status())
	}
}
