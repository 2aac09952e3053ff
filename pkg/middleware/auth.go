package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gilby125/seven-continents/config"
)

// RunAuth guards the endpoints that start or cancel planning runs. Reads
// stay open. A request passes with the configured bearer token or with the
// configured basic credentials; with auth disabled every request passes.
func RunAuth(cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled || bearerMatches(c.Request, cfg.Token) || basicMatches(c.Request, cfg.Username, cfg.Password) {
			c.Next()
			return
		}

		c.Header("WWW-Authenticate", `Bearer realm="runs", Basic realm="runs"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":  "run management requires credentials",
			"action": runAction(c.Request.Method),
		})
	}
}

func bearerMatches(r *http.Request, token string) bool {
	if token == "" {
		return false
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && equal(got, token)
}

func basicMatches(r *http.Request, user, pass string) bool {
	if user == "" || pass == "" {
		return false
	}
	u, p, ok := r.BasicAuth()
	// Compare both so timing does not reveal which one was wrong.
	userOK, passOK := equal(u, user), equal(p, pass)
	return ok && userOK && passOK
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func runAction(method string) string {
	switch method {
	case http.MethodPost:
		return "submit"
	case http.MethodDelete:
		return "cancel"
	default:
		return strings.ToLower(method)
	}
}
