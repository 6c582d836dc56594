package service

import (
	"github.com/okian/sessionrec/internal/adapters/cache"
	"github.com/okian/sessionrec/internal/domain/llmfilter"
	"github.com/okian/sessionrec/internal/domain/rules"
	"github.com/okian/sessionrec/internal/domain/similarity"
	"github.com/okian/sessionrec/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithEngine sets the similarity engine.
func WithEngine(e *similarity.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithMatcher sets the similar-visitor matcher.
func WithMatcher(m *similarity.VisitorMatcher) Option {
	return func(s *Service) {
		if m != nil {
			s.matcher = m
		}
	}
}

// WithRuleFilter sets the rule filter.
func WithRuleFilter(f *rules.Filter) Option {
	return func(s *Service) {
		if f != nil {
			s.rules = f
		}
	}
}

// WithLLMFilter enables model-based filtering for requests asking for it.
func WithLLMFilter(f *llmfilter.Filter) Option {
	return func(s *Service) {
		s.llm = f
	}
}

// WithCache replaces the service-owned caches.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithDefaults sets the request defaults and the cap on max recommendations.
func WithDefaults(minScore float64, maxRecommendations, limit int) Option {
	return func(s *Service) {
		if minScore >= 0 && minScore <= 1 {
			s.defaultMinScore = minScore
		}
		if maxRecommendations > 0 {
			s.defaultMax = maxRecommendations
		}
		if limit > 0 {
			s.maxLimit = limit
		}
	}
}

// WithSimilarVisitors sets how many similar visitors lend their history.
func WithSimilarVisitors(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.similarK = k
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
