// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"sort"
	"strings"
)

// Visitor is a registered attendee of this year's show.
type Visitor struct {
	BadgeID          string            `json:"badge_id"`
	JobRole          string            `json:"job_role"`
	PracticeType     string            `json:"practice_type"` // semicolon separated tags
	OrganisationType string            `json:"organisation_type"`
	Country          string            `json:"country"`
	Returning        bool              `json:"returning"` // attended last year
	Extra            map[string]string `json:"extra,omitempty"`
}

// VisitorSummary is the list view of a visitor.
type VisitorSummary struct {
	BadgeID          string `json:"badge_id"`
	JobRole          string `json:"job_role"`
	OrganisationType string `json:"organisation_type"`
	Country          string `json:"country"`
	Returning        bool   `json:"returning"`
}

// Summary projects v onto its list view.
func (v Visitor) Summary() VisitorSummary {
	return VisitorSummary{
		BadgeID:          v.BadgeID,
		JobRole:          v.JobRole,
		OrganisationType: v.OrganisationType,
		Country:          v.Country,
		Returning:        v.Returning,
	}
}

// Profile returns the visitor's attributes as ordered key/value pairs.
// Core attributes come first, extra attributes follow sorted by key.
func (v Visitor) Profile() [][2]string {
	out := [][2]string{
		{"badge_id", v.BadgeID},
		{"job_role", v.JobRole},
		{"practice_type", v.PracticeType},
		{"organisation_type", v.OrganisationType},
		{"country", v.Country},
	}
	keys := make([]string, 0, len(v.Extra))
	for k := range v.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, [2]string{k, v.Extra[k]})
	}
	return out
}

// FeatureText is the text embedded when comparing visitors to each other.
func (v Visitor) FeatureText() string {
	return strings.TrimSpace(fmt.Sprintf("job role: %s; practice type: %s; organisation type: %s; country: %s",
		v.JobRole, v.PracticeType, v.OrganisationType, v.Country))
}

// SimilarVisitor is a returning visitor matched to a target visitor.
type SimilarVisitor struct {
	Visitor             Visitor `json:"visitor"`
	FeatureOverlap      int     `json:"feature_overlap"`
	EmbeddingSimilarity float64 `json:"embedding_similarity"`
	Score               float64 `json:"score"`
}
