package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/okian/sessionrec/internal/domain/model"
	"github.com/okian/sessionrec/internal/domain/types"
)

const maxBodyBytes = 1 << 20

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// recommendationRequest mirrors the OpenAPI schema for POST /recommendations.
type recommendationRequest struct {
	BadgeID            string         `json:"badge_id" validate:"required_without=Visitor"`
	MinScore           *float64       `json:"min_score" validate:"omitempty,gte=0,lte=1"`
	MaxRecommendations int            `json:"max_recommendations" validate:"gte=0"`
	Visitor            *model.Visitor `json:"visitor"`
	UseLLM             bool           `json:"use_llm"`
}

// RecommendationsHandler runs the pipeline for HTTP callers.
type RecommendationsHandler struct {
	deps     RecommendationDependencies
	maxLimit int
}

// NewRecommendationsHandler creates a new recommendations handler.
func NewRecommendationsHandler(deps RecommendationDependencies, maxLimit int) *RecommendationsHandler {
	return &RecommendationsHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGet handles GET /visitors/{badge_id}/recommendations?min_score&max&use_llm.
func (h *RecommendationsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_recommendations"
	req := types.Request{BadgeID: strings.TrimSpace(r.PathValue("badge_id"))}
	if req.BadgeID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	q := r.URL.Query()
	if s := q.Get("min_score"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 || v > 1 {
			writeError(w, http.StatusBadRequest, "bad_request",
				WrapKind(op, ErrBadRequest, fmt.Errorf("min_score must be a number in [0,1], got %q", s)))
			return
		}
		req.MinScore = &v
	}
	if s := q.Get("max"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request",
				WrapKind(op, ErrBadRequest, fmt.Errorf("max must be a positive integer, got %q", s)))
			return
		}
		if h.maxLimit > 0 && n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded",
				WrapKind(op, ErrBadRequest, fmt.Errorf("max must not exceed %d", h.maxLimit)))
			return
		}
		req.MaxRecommendations = n
	}
	if s := q.Get("use_llm"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request",
				WrapKind(op, ErrBadRequest, fmt.Errorf("use_llm must be a boolean, got %q", s)))
			return
		}
		req.UseLLM = b
	}

	h.respond(w, r, req)
}

// HandlePost handles POST /recommendations requests.
func (h *RecommendationsHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_recommendations"
	var body recommendationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := getValidator().Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if h.maxLimit > 0 && body.MaxRecommendations > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded",
			WrapKind(op, ErrBadRequest, fmt.Errorf("max_recommendations must not exceed %d", h.maxLimit)))
		return
	}

	h.respond(w, r, types.Request{
		BadgeID:            strings.TrimSpace(body.BadgeID),
		MinScore:           body.MinScore,
		MaxRecommendations: body.MaxRecommendations,
		Visitor:            body.Visitor,
		UseLLM:             body.UseLLM,
	})
}

// respond writes the result bundle; failed requests keep the bundle as body.
func (h *RecommendationsHandler) respond(w http.ResponseWriter, r *http.Request, req types.Request) {
	res := h.deps.GetRecommendationsAndFilter(r.Context(), req)
	status := http.StatusOK
	switch res.Metadata.ErrorKind {
	case types.ErrorKindNotFound:
		status = http.StatusNotFound
	case types.ErrorKindInternal:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}
