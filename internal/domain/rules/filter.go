package rules

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/sessionrec/internal/domain/model"
	"github.com/okian/sessionrec/pkg/logger"
)

// Outcome is the result of running the filter.
type Outcome struct {
	Recommendations []model.Recommendation
	// Removed counts candidates dropped per stage.
	Removed map[Stage]int
	// Notes describe what each stage did, in execution order.
	Notes []string
}

// Filter applies the configured stages to a candidate list.
type Filter struct {
	cfg    Config
	logger logger.Logger
}

// Option configures a Filter.
type Option func(*Filter)

// WithLogger sets the logger used for stage decisions.
func WithLogger(l logger.Logger) Option {
	return func(f *Filter) {
		if l != nil {
			f.logger = l
		}
	}
}

// New validates cfg and returns a Filter.
func New(cfg Config, opts ...Option) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Filter{cfg: cfg, logger: logger.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Config returns the rule set in use.
func (f *Filter) Config() Config { return f.cfg }

// Apply runs the stages in priority order and re-sorts the survivors by
// similarity, descending. The input slice is not modified.
func (f *Filter) Apply(ctx context.Context, v model.Visitor, recs []model.Recommendation) Outcome {
	out := Outcome{
		Recommendations: append([]model.Recommendation(nil), recs...),
		Removed:         make(map[Stage]int, len(f.cfg.Priority)),
	}

	for _, stage := range f.cfg.Priority {
		before := len(out.Recommendations)
		var note string
		switch stage {
		case StagePracticeType:
			out.Recommendations, note = f.PracticeType(v, out.Recommendations)
		case StageRole:
			out.Recommendations, note = f.Role(v, out.Recommendations)
		}
		removed := before - len(out.Recommendations)
		out.Removed[stage] = removed
		out.Notes = append(out.Notes, note)
		f.logger.Debug(ctx, "rule stage applied",
			logger.String("stage", string(stage)),
			logger.String("badge_id", v.BadgeID),
			logger.Int("removed", removed),
			logger.Int("remaining", len(out.Recommendations)))
	}

	SortBySimilarity(out.Recommendations)
	return out
}

// PracticeType drops streams incompatible with the visitor's practice.
// The equine/mixed branch takes precedence over the small-animal branch.
func (f *Filter) PracticeType(v model.Visitor, recs []model.Recommendation) ([]model.Recommendation, string) {
	if !Present(v.PracticeType) {
		return recs, "practice type rule skipped: no practice type"
	}
	switch {
	case ContainsAny(v.PracticeType, f.cfg.EquineMixedTriggers):
		kept := exclude(recs, f.cfg.EquineMixedExclusions)
		return kept, fmt.Sprintf("practice type rule: equine/mixed practice, removed %d", len(recs)-len(kept))
	case ContainsAny(v.PracticeType, f.cfg.SmallAnimalTriggers):
		kept := exclude(recs, f.cfg.SmallAnimalExclusions)
		return kept, fmt.Sprintf("practice type rule: small animal practice, removed %d", len(recs)-len(kept))
	default:
		return recs, "practice type rule: no matching practice group"
	}
}

// Role drops nursing content for vets and keeps only the nurse allowlist
// for nurses.
func (f *Filter) Role(v model.Visitor, recs []model.Recommendation) ([]model.Recommendation, string) {
	if !Present(v.JobRole) {
		return recs, "role rule skipped: no job role"
	}
	switch {
	case f.cfg.IsVet(v.JobRole):
		kept := exclude(recs, f.cfg.VetExclusions)
		return kept, fmt.Sprintf("role rule: veterinarian, removed %d", len(recs)-len(kept))
	case f.cfg.IsNurse(v.JobRole):
		kept := include(recs, f.cfg.NurseAllowed)
		return kept, fmt.Sprintf("role rule: nurse, removed %d", len(recs)-len(kept))
	default:
		return recs, "role rule: no matching role group"
	}
}

func exclude(recs []model.Recommendation, keywords []string) []model.Recommendation {
	out := make([]model.Recommendation, 0, len(recs))
	for _, r := range recs {
		if !ContainsAny(r.Stream, keywords) {
			out = append(out, r)
		}
	}
	return out
}

func include(recs []model.Recommendation, keywords []string) []model.Recommendation {
	out := make([]model.Recommendation, 0, len(recs))
	for _, r := range recs {
		if ContainsAny(r.Stream, keywords) {
			out = append(out, r)
		}
	}
	return out
}

// SortBySimilarity orders recs by similarity descending, keeping the
// existing order among equal scores.
func SortBySimilarity(recs []model.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Similarity > recs[j].Similarity
	})
}
