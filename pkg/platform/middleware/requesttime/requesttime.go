// Package requesttime stamps each request with one "now" so a run triggered
// over HTTP reports the time the request arrived.
package requesttime

import (
	"net/http"
	"time"

	"outletdedup/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and stores
// it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
