package security

import (
	"net/http"

	"github.com/noah-isme/pos-terminal/internal/common"
)

// BodyLimit caps request payloads. Till requests are a handful of fields, so
// anything larger is rejected before it reaches a decoder.
type BodyLimit struct {
	Max int64
}

// Middleware answers 413 when the declared length exceeds Max and otherwise
// wraps the body so decoders fail once Max bytes have been read.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", map[string]int64{"max": b.Max})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		next.ServeHTTP(w, r)
	})
}
