package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Credential headers.
const (
	HeaderCRMToken   = "X-CRM-Token"
	HeaderWebhookKey = "X-Webhook-Key"
)

// Credential returns the first non-empty secret found in the query
// parameter, the named header, or an "Authorization: Bearer" header.
func Credential(c *gin.Context, header, query string) string {
	if query != "" {
		if v := strings.TrimSpace(c.Query(query)); v != "" {
			return v
		}
	}
	if v := strings.TrimSpace(c.GetHeader(header)); v != "" {
		return v
	}
	auth := c.GetHeader("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// SecretEqual compares in constant time. An empty expected value never
// matches.
func SecretEqual(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// OperatorAuth guards the operator API. An empty token leaves the API open,
// which is how local and mock setups run.
//
// EventSource cannot send headers, so the token is also accepted as ?token=.
func OperatorAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if SecretEqual(Credential(c, HeaderCRMToken, "token"), token) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"ok":         false,
			"request_id": RequestIDFrom(c),
			"error":      "unauthorized",
			"message":    "missing or invalid operator token",
		})
	}
}
