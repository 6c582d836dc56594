// Package site serves the embedded landing page of the service.
package site

import (
	"context"
	"net/http"
)

// Register attaches the embedded site to mux at the root path.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("GET /", http.FileServer(FS()))
}
