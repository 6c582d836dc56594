// Package llmfilter asks a hosted chat model to apply the business rules to
// a candidate list, falling back to the unfiltered list on any failure.
package llmfilter

import (
	"context"
	"fmt"

	"github.com/okian/sessionrec/internal/domain/dedupe"
	"github.com/okian/sessionrec/internal/domain/model"
	"github.com/okian/sessionrec/internal/domain/rules"
	"github.com/okian/sessionrec/pkg/logger"
	"github.com/okian/sessionrec/pkg/metrics"
)

// Fallback reasons.
const (
	ReasonPrompt = "prompt"
	ReasonCall   = "call"
	ReasonParse  = "parse"
)

// Chat sends one system + user exchange to a model.
type Chat interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Outcome is the result of one filter call.
type Outcome struct {
	Recommendations []model.Recommendation
	Notes           []string
	// Fallback is set when the input list was returned unfiltered.
	Fallback bool
	Reason   string
}

// Filter applies the rule set through a chat model.
type Filter struct {
	chat   Chat
	rules  rules.Config
	logger logger.Logger
}

// Option configures a Filter.
type Option func(*Filter)

// WithLogger sets the filter logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Filter) {
		if l != nil {
			f.logger = l
		}
	}
}

// New returns a Filter that renders cfg into its prompt.
func New(chat Chat, cfg rules.Config, opts ...Option) *Filter {
	f := &Filter{chat: chat, rules: cfg, logger: logger.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Apply makes one model call. Returned ids are mapped back onto the input
// candidates; unknown ids are ignored and repeats collapse. Survivors are
// ordered by similarity descending.
func (f *Filter) Apply(ctx context.Context, v model.Visitor, recs []model.Recommendation) Outcome {
	if len(recs) == 0 {
		return Outcome{Recommendations: []model.Recommendation{}, Notes: []string{"LLM filter skipped: no candidates"}}
	}

	system, user, err := BuildPrompt(v, recs, f.rules)
	if err != nil {
		return f.fallback(ctx, recs, ReasonPrompt, err)
	}
	reply, err := f.chat.Complete(ctx, system, user)
	if err != nil {
		return f.fallback(ctx, recs, ReasonCall, err)
	}
	ids, err := ParseSessionIDs(reply)
	if err != nil {
		return f.fallback(ctx, recs, ReasonParse, err)
	}

	byID := make(map[string]model.Recommendation, len(recs))
	for _, r := range recs {
		if _, ok := byID[r.SessionID]; !ok {
			byID[r.SessionID] = r
		}
	}
	ids = dedupe.Unique(ids, func(id string) string { return id })
	out := make([]model.Recommendation, 0, len(ids))
	unknown := 0
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			unknown++
			continue
		}
		out = append(out, r)
	}
	rules.SortBySimilarity(out)

	notes := []string{fmt.Sprintf("LLM filter kept %d of %d candidates", len(out), len(recs))}
	if unknown > 0 {
		notes = append(notes, fmt.Sprintf("LLM filter ignored %d unknown session ids", unknown))
	}
	f.logger.Debug(ctx, "llm filter applied",
		logger.String("badge_id", v.BadgeID),
		logger.Int("candidates", len(recs)),
		logger.Int("kept", len(out)),
		logger.Int("unknown", unknown))
	return Outcome{Recommendations: out, Notes: notes}
}

func (f *Filter) fallback(ctx context.Context, recs []model.Recommendation, reason string, err error) Outcome {
	metrics.RecordLLMFallback(reason)
	f.logger.Warn(ctx, "llm filter fell back to unfiltered list",
		logger.String("reason", reason),
		logger.Error(err))
	return Outcome{
		Recommendations: append([]model.Recommendation(nil), recs...),
		Notes:           []string{fmt.Sprintf("LLM filter failed (%s): %v; returned unfiltered recommendations", reason, err)},
		Fallback:        true,
		Reason:          reason,
	}
}
