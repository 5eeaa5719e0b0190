package common_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-terminal/internal/common"
)

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	require.Equal(t, "10.0.0.7", common.ClientIP(req))

	// without RealIP in front, forwarding headers are not trusted
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "10.0.0.7", common.ClientIP(req))

	req.RemoteAddr = "192.168.1.20"
	require.Equal(t, "192.168.1.20", common.ClientIP(req))
}

func TestClientIPBehindRealIP(t *testing.T) {
	var seen string
	handler := middleware.RealIP(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = common.ClientIP(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	req.Header.Set("X-Real-IP", "192.168.1.20")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "192.168.1.20", seen)
}
