package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsHeaders = "Authorization, Content-Type, Accept-Language, X-Request-ID"
)

// CORS answers preflight requests and tags responses for the configured origins.
// allowedOrigins is a comma-separated list; "*" or an empty list allows any origin
// without credentials. Listed origins are echoed back with credentials allowed so the
// frontend can send the lang cookie.
func CORS(allowedOrigins string) gin.HandlerFunc {
	origins := ParseOrigins(allowedOrigins)
	wildcard := len(origins) == 0 || origins["*"]
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")
		origin := c.GetHeader("Origin")
		switch {
		case origin == "":
		case wildcard:
			h.Set("Access-Control-Allow-Origin", "*")
		case origins[origin]:
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		default:
			origin = ""
		}
		if origin != "" {
			h.Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Language")
		}
		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}
		if origin != "" {
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Max-Age", "86400")
		}
		c.AbortWithStatus(http.StatusNoContent)
	}
}

// ParseOrigins turns "a, b" into a lookup set. The WebSocket upgrader uses the same set.
func ParseOrigins(s string) map[string]bool {
	set := map[string]bool{}
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSuffix(strings.TrimSpace(o), "/"); o != "" {
			set[o] = true
		}
	}
	return set
}
