package common

import (
	"net"
	"net/http"
)

// ClientIP returns the host part of RemoteAddr. Proxy headers are resolved
// upstream by chi's middleware.RealIP, which rewrites RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
