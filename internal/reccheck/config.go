// Package reccheck drives a running recommendation service over HTTP and
// checks the invariants every result must hold.
package reccheck

import (
	"time"

	"github.com/okian/sessionrec/internal/domain/types"
)

// Config holds configuration for one check run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Limit      int           // Visitors to check; 0 checks all
	MinScore   float64       // min_score sent with every request
	Max        int           // max sent with every request
	UseLLM     bool          // use_llm sent with every request
	Workers    int           // Concurrent requests
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Report file; empty skips the report
	Verbose    bool          // Log every violation
}

// Outcome is the checked result for one visitor.
type Outcome struct {
	BadgeID    string       `json:"badge_id"`
	Status     int          `json:"status"`
	Result     types.Result `json:"result"`
	Violations []string     `json:"violations,omitempty"`
	Err        string       `json:"error,omitempty"`
}

// Stats holds run statistics.
type Stats struct {
	Visitors   int
	Requested  int
	Succeeded  int
	NotFound   int
	Failed     int
	Violations int
	Empty      int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
