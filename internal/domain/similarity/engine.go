// Package similarity scores this year's sessions against reference sessions
// and matches new visitors to returning ones.
package similarity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/sessionrec/internal/domain/model"
	"github.com/okian/sessionrec/pkg/logger"
)

// Runner executes n indexed jobs with bounded concurrency and waits for all
// of them to finish.
type Runner interface {
	Run(ctx context.Context, n int, task func(ctx context.Context, idx int) error) error
}

// Engine ranks target sessions by their best similarity to any reference.
type Engine struct {
	runner Runner
	logger logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine returns an Engine that fans out over references with runner.
func NewEngine(runner Runner, opts ...Option) *Engine {
	e := &Engine{runner: runner, logger: logger.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rank scores every target against every reference and keeps, per target
// session id, the maximum. Targets scoring below minScore are dropped. The
// result is ordered by score descending; equal scores keep target order.
func (e *Engine) Rank(ctx context.Context, refs, targets []model.Session, minScore float64) ([]model.Recommendation, error) {
	if len(refs) == 0 || len(targets) == 0 {
		return []model.Recommendation{}, nil
	}
	start := time.Now()

	// one slot per reference; workers never share a slot
	partial := make([][]float64, len(refs))
	err := e.runner.Run(ctx, len(refs), func(_ context.Context, i int) error {
		scores := make([]float64, len(targets))
		ref := refs[i].Embedding
		for j := range targets {
			scores[j] = Cosine(ref, targets[j].Embedding)
		}
		partial[i] = scores
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("score references: %w", err)
	}

	best := MergeMax(len(targets), partial)

	// first position wins for repeated target ids; score is the max over all
	slot := make(map[string]int, len(targets))
	order := make([]int, 0, len(targets))
	for j, t := range targets {
		if k, ok := slot[t.SessionID]; ok {
			best[k] = max(best[k], best[j])
			continue
		}
		slot[t.SessionID] = j
		order = append(order, j)
	}

	out := make([]model.Recommendation, 0, len(order))
	for _, j := range order {
		if best[j] < minScore {
			continue
		}
		out = append(out, targets[j].Recommend(best[j]))
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Similarity > out[b].Similarity })

	e.logger.Debug(ctx, "sessions ranked",
		logger.Int("references", len(refs)),
		logger.Int("targets", len(targets)),
		logger.Int("kept", len(out)),
		logger.Float64("min_score", minScore),
		logger.Duration("elapsed", time.Since(start)))
	return out, nil
}

// MergeMax reduces per-reference score vectors of length n to their
// element-wise maximum. Nil vectors are ignored.
func MergeMax(n int, partial [][]float64) []float64 {
	best := make([]float64, n)
	for _, scores := range partial {
		for j := 0; j < n && j < len(scores); j++ {
			if scores[j] > best[j] {
				best[j] = scores[j]
			}
		}
	}
	return best
}
