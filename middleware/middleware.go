// Package middleware carries the sync server's request guards. Reads stay
// open; anything that mutates the ledger or the profile goes through the
// bearer token check.
package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// NewToken generates the per-process write token. It is printed once at
// startup and never persisted.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// RequireToken returns a middleware that rejects requests whose bearer token
// does not match. Both the Authorization header and X-API-Key are accepted.
func RequireToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := bearerToken(c.Request)

		// Constant-time comparison to prevent timing attacks.
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or missing token",
			})
			return
		}
		c.Next()
	}
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// ValidateSinceParam checks the incremental feed cursor before the handler
// touches the ledger.
func ValidateSinceParam() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.Query("since"); raw != "" {
			since, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || since < 0 {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error": "invalid since parameter, must be a non-negative integer",
				})
				return
			}
			c.Set("since", since)
		}
		c.Next()
	}
}
