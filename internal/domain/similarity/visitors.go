package similarity

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/sessionrec/internal/domain/dedupe"
	"github.com/okian/sessionrec/internal/domain/model"
	"github.com/okian/sessionrec/pkg/logger"
)

const (
	defaultPoolSize        = 20
	defaultEmbeddingWeight = 0.7
	defaultOverlapWeight   = 0.3
	overlapFeatures        = 4
)

// CandidateSource supplies returning visitors to compare against.
type CandidateSource interface {
	// SimilarVisitorCandidates returns returning visitors with history that
	// share at least one feature with v, best overlap first.
	SimilarVisitorCandidates(ctx context.Context, v model.Visitor, poolSize int) ([]model.Visitor, error)
	// ReturningVisitorsWithHistory returns any returning visitors with history.
	ReturningVisitorsWithHistory(ctx context.Context, excludeBadgeID string, limit int) ([]model.Visitor, error)
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// VisitorMatcher finds returning visitors resembling a new visitor.
type VisitorMatcher struct {
	source          CandidateSource
	embedder        Embedder
	poolSize        int
	embeddingWeight float64
	overlapWeight   float64
	logger          logger.Logger
}

// MatcherOption configures a VisitorMatcher.
type MatcherOption func(*VisitorMatcher)

// WithPoolSize bounds the pre-filtered candidate pool.
func WithPoolSize(n int) MatcherOption {
	return func(m *VisitorMatcher) {
		if n > 0 {
			m.poolSize = n
		}
	}
}

// WithWeights sets the blend of embedding similarity and feature overlap.
func WithWeights(embedding, overlap float64) MatcherOption {
	return func(m *VisitorMatcher) {
		if embedding >= 0 && overlap >= 0 && embedding+overlap > 0 {
			m.embeddingWeight = embedding
			m.overlapWeight = overlap
		}
	}
}

// WithMatcherLogger sets the matcher logger.
func WithMatcherLogger(l logger.Logger) MatcherOption {
	return func(m *VisitorMatcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewVisitorMatcher returns a matcher. embedder may be nil, in which case
// FindSimilar reports ErrEmbedderUnavailable.
func NewVisitorMatcher(source CandidateSource, embedder Embedder, opts ...MatcherOption) *VisitorMatcher {
	m := &VisitorMatcher{
		source:          source,
		embedder:        embedder,
		poolSize:        defaultPoolSize,
		embeddingWeight: defaultEmbeddingWeight,
		overlapWeight:   defaultOverlapWeight,
		logger:          logger.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Available reports whether the matcher can embed visitor profiles.
func (m *VisitorMatcher) Available() bool { return m.embedder != nil }

// FindSimilar returns up to k returning visitors ranked by
// embeddingWeight*cosine + overlapWeight*overlap/4. When fewer than k
// visitors share a feature, the pool is widened to any returning visitor
// with attendance history.
func (m *VisitorMatcher) FindSimilar(ctx context.Context, v model.Visitor, k int) ([]model.SimilarVisitor, error) {
	if k <= 0 {
		return []model.SimilarVisitor{}, nil
	}
	if m.embedder == nil {
		return nil, ErrEmbedderUnavailable
	}

	pool, err := m.source.SimilarVisitorCandidates(ctx, v, m.poolSize)
	if err != nil {
		return nil, fmt.Errorf("similar visitor candidates: %w", err)
	}
	if len(pool) < k {
		relaxed, err := m.source.ReturningVisitorsWithHistory(ctx, v.BadgeID, m.poolSize)
		if err != nil {
			return nil, fmt.Errorf("returning visitors: %w", err)
		}
		m.logger.Debug(ctx, "candidate pool relaxed",
			logger.String("badge_id", v.BadgeID),
			logger.Int("overlap_pool", len(pool)),
			logger.Int("relaxed_pool", len(relaxed)))
		pool = append(pool, relaxed...)
	}

	pool = dedupe.Unique(pool, func(c model.Visitor) string {
		if c.BadgeID == v.BadgeID {
			return ""
		}
		return c.BadgeID
	})
	if len(pool) == 0 {
		return []model.SimilarVisitor{}, nil
	}

	texts := make([]string, 0, len(pool)+1)
	texts = append(texts, v.FeatureText())
	for _, c := range pool {
		texts = append(texts, c.FeatureText())
	}
	vecs, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed visitor profiles: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: sent %d, got %d", ErrEmbeddingMismatch, len(texts), len(vecs))
	}

	out := make([]model.SimilarVisitor, len(pool))
	for i, c := range pool {
		overlap := FeatureOverlap(v, c)
		emb := Cosine(vecs[0], vecs[i+1])
		out[i] = model.SimilarVisitor{
			Visitor:             c,
			FeatureOverlap:      overlap,
			EmbeddingSimilarity: emb,
			Score:               m.embeddingWeight*emb + m.overlapWeight*float64(overlap)/overlapFeatures,
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].Visitor.BadgeID < out[b].Visitor.BadgeID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// FeatureOverlap counts how many of role, practice type, organisation type
// and country two visitors share. Missing or NA values never match.
func FeatureOverlap(a, b model.Visitor) int {
	n := 0
	for _, pair := range [overlapFeatures][2]string{
		{a.JobRole, b.JobRole},
		{a.PracticeType, b.PracticeType},
		{a.OrganisationType, b.OrganisationType},
		{a.Country, b.Country},
	} {
		if sameFeature(pair[0], pair[1]) {
			n++
		}
	}
	return n
}

func sameFeature(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || strings.EqualFold(a, "na") {
		return false
	}
	return strings.EqualFold(a, b)
}
