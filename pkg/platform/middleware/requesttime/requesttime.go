// Package requesttime pins a single "now" for the lifetime of a request so
// that rate-limit windows, lockout expiry and audit timestamps agree.
package requesttime

import (
	"net/http"
	"time"

	"greenctf/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
// Read it back with requestcontext.Now.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
