package api

import (
	"fmt"
	"net/http"
	"time"
)

// NewServer wraps handler in an *http.Server listening on port. The write
// timeout leaves room for a slow provider launch call.
func NewServer(port uint16, handler http.Handler, launchTimeout time.Duration) *http.Server {
	addr := fmt.Sprintf(":%d", port)

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      max(15*time.Second, launchTimeout+5*time.Second),
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
