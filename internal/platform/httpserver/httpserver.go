package httpserver

import (
	"net/http"
	"time"
)

// New builds the admin HTTP server. No write timeout is set: POST /runs
// answers only once the run finishes.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
