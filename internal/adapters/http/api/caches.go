package api

import "net/http"

// CachesHandler handles cache maintenance requests.
type CachesHandler struct {
	deps CacheDependencies
}

// NewCachesHandler creates a new caches handler.
func NewCachesHandler(deps CacheDependencies) *CachesHandler {
	return &CachesHandler{deps: deps}
}

type statusResponse struct {
	Status string `json:"status"`
}

// HandleClear handles POST /caches/clear requests.
func (h *CachesHandler) HandleClear(w http.ResponseWriter, _ *http.Request) {
	h.deps.ClearCaches()
	writeJSON(w, http.StatusOK, statusResponse{Status: "cleared"})
}
