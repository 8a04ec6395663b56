package http_test

import (
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	pkghttp "github.com/ewhitfield/storefront/pkg/http"
	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_DirectConnection(t *testing.T) {
	req := httptest.NewRequest(nethttp.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:54321"

	ip := pkghttp.ExtractClientIP(req, nil)

	assert.Equal(t, "203.0.113.7", ip)
}

func TestExtractClientIP_SpoofedHeaderFromUntrustedPeer(t *testing.T) {
	req := httptest.NewRequest(nethttp.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:54321"
	req.Header.Set("X-Forwarded-For", "10.0.0.1")

	config := &pkghttp.IPConfig{TrustedProxies: []string{"192.168.0.0/16"}}
	ip := pkghttp.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.7", ip, "forwarded headers from untrusted peers are ignored")
}

func TestExtractClientIP_TrustedProxy(t *testing.T) {
	req := httptest.NewRequest(nethttp.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.10:443"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 192.168.1.10")

	config := &pkghttp.IPConfig{TrustedProxies: []string{"192.168.0.0/16"}}
	ip := pkghttp.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.7", ip)
}

func TestExtractClientIP_TrustedProxyRealIP(t *testing.T) {
	req := httptest.NewRequest(nethttp.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.10:443"
	req.Header.Set("X-Real-IP", "203.0.113.7")

	config := &pkghttp.IPConfig{TrustedProxies: []string{"192.168.0.0/16"}}
	ip := pkghttp.ExtractClientIP(req, config)

	assert.Equal(t, "203.0.113.7", ip)
}

func TestExtractClientIP_GarbageForwardedValue(t *testing.T) {
	req := httptest.NewRequest(nethttp.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.10:443"
	req.Header.Set("X-Forwarded-For", "not-an-ip")

	config := &pkghttp.IPConfig{TrustedProxies: []string{"192.168.0.0/16"}}
	ip := pkghttp.ExtractClientIP(req, config)

	assert.Equal(t, "192.168.1.10", ip)
}
