package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginPolicyAllowList(t *testing.T) {
	p := NewOriginPolicy("http://localhost:3000, https://app.example.com")

	assert.True(t, p.Allows("http://localhost:3000"))
	assert.True(t, p.Allows("https://app.example.com"))
	assert.False(t, p.Allows("https://evil.example.com"))
	assert.True(t, p.Allows(""), "non-browser clients carry no origin")
}

func TestOriginPolicyWildcard(t *testing.T) {
	for _, raw := range []string{"*", "", "  *  "} {
		p := NewOriginPolicy(raw)
		assert.True(t, p.Allows("https://anywhere.example.com"), "config %q", raw)
	}
}
