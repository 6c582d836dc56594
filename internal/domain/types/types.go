// Package types contains the request and result types exchanged between the
// orchestrator and its callers.
package types

import (
	"time"

	"github.com/okian/sessionrec/internal/domain/model"
)

// Strategy names how reference sessions were chosen.
type Strategy string

const (
	// StrategyHistory uses the visitor's own attendance last year.
	StrategyHistory Strategy = "own_history"
	// StrategySimilarVisitors uses sessions attended by similar returning visitors.
	StrategySimilarVisitors Strategy = "similar_visitors"
)

// ErrorKind classifies a failed request.
type ErrorKind string

const (
	ErrorKindNone     ErrorKind = ""
	ErrorKindNotFound ErrorKind = "not_found"
	ErrorKindInternal ErrorKind = "internal"
)

// Request asks for recommendations for one visitor.
type Request struct {
	BadgeID            string         `json:"badge_id"`
	MinScore           *float64       `json:"min_score,omitempty"`
	MaxRecommendations int            `json:"max_recommendations,omitempty"`
	Visitor            *model.Visitor `json:"visitor,omitempty"` // optional, skips the lookup
	UseLLM             bool           `json:"use_llm"`
}

// Metadata describes how a Result was produced.
type Metadata struct {
	RequestID         string                 `json:"request_id"`
	BadgeID           string                 `json:"badge_id"`
	Strategy          Strategy               `json:"strategy,omitempty"`
	ReferenceSessions int                    `json:"reference_sessions"`
	SimilarVisitors   []model.SimilarVisitor `json:"similar_visitors,omitempty"`
	RawCount          int                    `json:"raw_count"`
	FilteredCount     int                    `json:"filtered_count"`
	ProcessingTimeMS  float64                `json:"processing_time_ms"`
	ProcessingSteps   []string               `json:"processing_steps"`
	Error             string                 `json:"error,omitempty"`
	ErrorKind         ErrorKind              `json:"error_kind,omitempty"`
	GeneratedAt       time.Time              `json:"generated_at"`
}

// Result bundles the raw and filtered lists for one request.
type Result struct {
	Visitor                 *model.Visitor         `json:"visitor,omitempty"`
	RawRecommendations      []model.Recommendation `json:"raw_recommendations"`
	FilteredRecommendations []model.Recommendation `json:"filtered_recommendations"`
	Metadata                Metadata               `json:"metadata"`
}

// Failed reports whether the request ended in an error.
func (r Result) Failed() bool { return r.Metadata.Error != "" }

// Step appends a processing step note.
func (m *Metadata) Step(note string) {
	m.ProcessingSteps = append(m.ProcessingSteps, note)
}

// Stats is a snapshot of service state.
type Stats struct {
	Caches          map[string]int `json:"caches"`
	Requests        uint64         `json:"requests"`
	Failures        uint64         `json:"failures"`
	LLMConfigured   bool           `json:"llm_configured"`
	EmbedderEnabled bool           `json:"embedder_enabled"`
	RulePriority    []string       `json:"rule_priority"`
}
