// Package requestid copies the chi request id into requestcontext so services
// and handlers can log it without importing chi.
package requestid

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"outletdedup/pkg/requestcontext"
)

// Middleware must run after chi's middleware.RequestID.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
