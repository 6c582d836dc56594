package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/okian/sessionrec/internal/adapters/repository"
)

// VisitorsHandler handles visitor reads.
type VisitorsHandler struct {
	deps VisitorDependencies
}

// NewVisitorsHandler creates a new visitors handler.
func NewVisitorsHandler(deps VisitorDependencies) *VisitorsHandler {
	return &VisitorsHandler{deps: deps}
}

// HandleList handles GET /visitors requests.
func (h *VisitorsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_visitors"
	list, err := h.deps.GetAllVisitors(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGet handles GET /visitors/{badge_id} requests.
func (h *VisitorsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_visitor"
	badgeID := strings.TrimSpace(r.PathValue("badge_id"))
	if badgeID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	v, err := h.deps.GetVisitorByBadgeID(r.Context(), badgeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, v)
}
