package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/tubeshim/models"
)

// Auth checks the caller's API key against keys, accepting either
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// Every configured key is compared in constant time. Refusals are reported
// to o (which may be nil). With no keys the middleware lets everything in.
func Auth(keys []string, o Observer) gin.HandlerFunc {
	o = observerOrNop(o)

	accepted := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			accepted = append(accepted, []byte(k))
		}
	}
	if len(accepted) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := presentedKey(c)
		if key == "" {
			o.ObserveRejection(RejectMissingKey)
			abort(c, http.StatusUnauthorized, models.ErrCodeUnauthorized,
				"missing API key: provide X-API-Key header or Authorization: Bearer <key>")
			return
		}
		if !knownKey(accepted, []byte(key)) {
			o.ObserveRejection(RejectInvalidKey)
			abort(c, http.StatusUnauthorized, models.ErrCodeUnauthorized, "invalid API key")
			return
		}

		c.Set(identityKey, key)
		c.Next()
	}
}

// identityKey is the gin context key holding the authenticated API key.
const identityKey = "api_key"

// knownKey compares presented against every accepted key without
// stopping at the first match.
func knownKey(accepted [][]byte, presented []byte) bool {
	match := 0
	for _, k := range accepted {
		match |= subtle.ConstantTimeCompare(k, presented)
	}
	return match == 1
}

// presentedKey tries X-API-Key first, then Authorization: Bearer.
func presentedKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Success: false,
		Error:   &models.ErrorDetail{Code: code, Message: msg},
	})
}
