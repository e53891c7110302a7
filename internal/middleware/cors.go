package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// OriginPolicy decides which browser origins may call the REST API and open
// meeting sockets. Configured as "*" or a comma-separated list
// (e.g. "http://localhost:3000,http://localhost:3001"). The same policy
// backs both the CORS headers and the WebSocket upgrade check, so a client
// that can list meetings can also join them.
type OriginPolicy struct {
	allowAll bool
	origins  map[string]struct{}
}

// NewOriginPolicy parses the configured origin list.
func NewOriginPolicy(allowedOrigins string) *OriginPolicy {
	p := &OriginPolicy{origins: make(map[string]struct{})}
	for _, o := range strings.Split(strings.TrimSpace(allowedOrigins), ",") {
		o = strings.TrimSpace(o)
		if o == "*" {
			p.allowAll = true
			continue
		}
		if o != "" {
			p.origins[o] = struct{}{}
		}
	}
	if len(p.origins) == 0 {
		p.allowAll = true
	}
	return p
}

// Allows reports whether the origin may talk to us. An empty origin is a
// non-browser client and is always allowed.
func (p *OriginPolicy) Allows(origin string) bool {
	if origin == "" || p.allowAll {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

// CheckOrigin adapts the policy to the websocket upgrader's signature.
func (p *OriginPolicy) CheckOrigin(r *http.Request) bool {
	return p.Allows(r.Header.Get("Origin"))
}

// CORS returns the preflight and response-header middleware for the REST
// surface, driven by the same policy.
func (p *OriginPolicy) CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowOrigin := ""
		switch {
		case p.allowAll:
			allowOrigin = "*"
		case origin != "" && p.Allows(origin):
			allowOrigin = origin
		}
		if allowOrigin != "" {
			c.Header("Access-Control-Allow-Origin", allowOrigin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
