// Package service provides the recommendation orchestrator that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/sessionrec/internal/adapters/cache"
	workerpool "github.com/okian/sessionrec/internal/adapters/mq/worker"
	"github.com/okian/sessionrec/internal/adapters/repository"
	"github.com/okian/sessionrec/internal/domain/llmfilter"
	"github.com/okian/sessionrec/internal/domain/model"
	"github.com/okian/sessionrec/internal/domain/rules"
	"github.com/okian/sessionrec/internal/domain/similarity"
	"github.com/okian/sessionrec/internal/domain/types"
	"github.com/okian/sessionrec/pkg/logger"
	"github.com/okian/sessionrec/pkg/metrics"
)

const (
	defaultMaxRecommendations = 10
	defaultMaxLimit           = 100
	defaultSimilarVisitors    = 3
	defaultEngineWorkers      = 8

	outcomeOK       = "ok"
	outcomeEmpty    = "empty"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

// Service orchestrates one recommendation request end to end.
type Service struct {
	store   repository.Store
	engine  *similarity.Engine
	matcher *similarity.VisitorMatcher
	rules   *rules.Filter
	llm     *llmfilter.Filter // nil when no chat model is configured
	cache   *cache.Cache

	defaultMinScore float64
	defaultMax      int
	maxLimit        int
	similarK        int

	requests atomic.Uint64
	failures atomic.Uint64

	logger logger.Logger
}

// New constructs a Service reading from store. Components not supplied by
// options get defaults: an 8-worker engine, a matcher without an embedder,
// the default rule set and fresh caches.
func New(store repository.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	s := &Service{
		store:      store,
		defaultMax: defaultMaxRecommendations,
		maxLimit:   defaultMaxLimit,
		similarK:   defaultSimilarVisitors,
		logger:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.engine == nil {
		s.engine = similarity.NewEngine(workerpool.NewPool(defaultEngineWorkers))
	}
	if s.matcher == nil {
		s.matcher = similarity.NewVisitorMatcher(store, nil)
	}
	if s.rules == nil {
		f, err := rules.New(rules.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("default rules: %w", err)
		}
		s.rules = f
	}
	if s.cache == nil {
		s.cache = cache.New()
	}
	if s.defaultMax > s.maxLimit {
		s.defaultMax = s.maxLimit
	}
	return s, nil
}

// GetAllVisitors lists every visitor ordered by badge id.
func (s *Service) GetAllVisitors(ctx context.Context) ([]model.VisitorSummary, error) {
	out, err := s.store.ListVisitors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list visitors: %w", err)
	}
	return out, nil
}

// GetVisitorByBadgeID returns one visitor, reading through the visitor cache.
// Returns repository.ErrNotFound when the badge is unknown.
func (s *Service) GetVisitorByBadgeID(ctx context.Context, badgeID string) (model.Visitor, error) {
	badgeID = strings.TrimSpace(badgeID)
	if badgeID == "" {
		return model.Visitor{}, ErrNoBadgeID
	}
	if v, ok := s.cache.Visitor(badgeID); ok {
		return v, nil
	}
	v, err := s.store.GetVisitor(ctx, badgeID)
	if err != nil {
		return model.Visitor{}, fmt.Errorf("get visitor %s: %w", badgeID, err)
	}
	s.cache.SetVisitor(v)
	return v, nil
}

// GetRecommendationsAndFilter runs the full pipeline for one visitor. It never
// returns an error: failures are reported in the result metadata with empty
// recommendation lists.
func (s *Service) GetRecommendationsAndFilter(ctx context.Context, req types.Request) (res types.Result) {
	start := time.Now()
	s.requests.Add(1)
	res = types.Result{
		RawRecommendations:      []model.Recommendation{},
		FilteredRecommendations: []model.Recommendation{},
		Metadata: types.Metadata{
			RequestID:       uuid.NewString(),
			BadgeID:         strings.TrimSpace(req.BadgeID),
			ProcessingSteps: []string{},
			GeneratedAt:     start.UTC(),
		},
	}
	if res.Metadata.BadgeID == "" && req.Visitor != nil {
		res.Metadata.BadgeID = req.Visitor.BadgeID
	}

	defer func() {
		if r := recover(); r != nil {
			s.fail(ctx, &res, types.ErrorKindInternal, fmt.Errorf("panic: %v", r))
		}
		elapsed := time.Since(start)
		res.Metadata.ProcessingTimeMS = float64(elapsed.Microseconds()) / 1000
		res.Metadata.RawCount = len(res.RawRecommendations)
		res.Metadata.FilteredCount = len(res.FilteredRecommendations)
		metrics.RecordRecommendation(string(res.Metadata.Strategy), outcomeOf(res), res.Metadata.ProcessingTimeMS)
		s.logger.Info(ctx, "recommendation request completed",
			logger.String("request_id", res.Metadata.RequestID),
			logger.String("badge_id", res.Metadata.BadgeID),
			logger.String("strategy", string(res.Metadata.Strategy)),
			logger.Int("raw", res.Metadata.RawCount),
			logger.Int("filtered", res.Metadata.FilteredCount),
			logger.Duration("elapsed", elapsed))
	}()

	minScore, maxRecs := s.limits(req)

	v, err := s.resolveVisitor(ctx, req)
	if err != nil {
		kind := types.ErrorKindInternal
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, ErrNoBadgeID) {
			kind = types.ErrorKindNotFound
		}
		s.fail(ctx, &res, kind, err)
		return res
	}
	res.Visitor = &v
	res.Metadata.BadgeID = v.BadgeID
	res.Metadata.Step(fmt.Sprintf("resolved visitor %s (returning: %t)", v.BadgeID, v.Returning))

	refs, err := s.referenceSessions(ctx, &res.Metadata, v)
	if err != nil {
		s.fail(ctx, &res, types.ErrorKindInternal, err)
		return res
	}
	res.Metadata.ReferenceSessions = len(refs)
	if len(refs) == 0 {
		res.Metadata.Step("no reference sessions; nothing to recommend")
		return res
	}

	targets, err := s.thisYearSessions(ctx)
	if err != nil {
		s.fail(ctx, &res, types.ErrorKindInternal, err)
		return res
	}

	raw, err := s.engine.Rank(ctx, refs, targets, minScore)
	if err != nil {
		s.fail(ctx, &res, types.ErrorKindInternal, fmt.Errorf("rank sessions: %w", err))
		return res
	}
	res.Metadata.Step(fmt.Sprintf("scored %d this-year sessions against %d references; %d at or above %.2f",
		len(targets), len(refs), len(raw), minScore))
	if len(raw) > maxRecs {
		raw = raw[:maxRecs]
		res.Metadata.Step(fmt.Sprintf("capped to %d recommendations", maxRecs))
	}
	res.RawRecommendations = raw

	res.FilteredRecommendations = s.filter(ctx, &res.Metadata, v, raw, req.UseLLM)
	metrics.RecordCandidates(len(res.RawRecommendations), len(res.FilteredRecommendations))
	return res
}

// ClearCaches drops every cached visitor, session snapshot and
// similar-visitor list.
func (s *Service) ClearCaches() {
	s.cache.Clear()
	s.logger.Info(context.Background(), "caches cleared")
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() types.Stats {
	cfg := s.rules.Config()
	priority := make([]string, len(cfg.Priority))
	for i, st := range cfg.Priority {
		priority[i] = string(st)
	}
	return types.Stats{
		Caches:          s.cache.Sizes(),
		Requests:        s.requests.Load(),
		Failures:        s.failures.Load(),
		LLMConfigured:   s.llm != nil,
		EmbedderEnabled: s.matcher.Available(),
		RulePriority:    priority,
	}
}

// Close releases the store.
func (s *Service) Close(ctx context.Context) error {
	return s.store.Close(ctx)
}

func (s *Service) limits(req types.Request) (float64, int) {
	minScore := s.defaultMinScore
	if req.MinScore != nil {
		minScore = similarity.Clip(*req.MinScore)
	}
	maxRecs := s.defaultMax
	if req.MaxRecommendations > 0 {
		maxRecs = min(req.MaxRecommendations, s.maxLimit)
	}
	return minScore, maxRecs
}

func (s *Service) resolveVisitor(ctx context.Context, req types.Request) (model.Visitor, error) {
	if req.Visitor != nil && strings.TrimSpace(req.Visitor.BadgeID) != "" {
		return *req.Visitor, nil
	}
	return s.GetVisitorByBadgeID(ctx, req.BadgeID)
}

// referenceSessions picks the sessions to score against: the visitor's own
// history when returning, otherwise the history of similar visitors.
func (s *Service) referenceSessions(ctx context.Context, md *types.Metadata, v model.Visitor) ([]model.Session, error) {
	if v.Returning {
		md.Strategy = types.StrategyHistory
		refs, err := s.store.PastSessionsForVisitor(ctx, v.BadgeID)
		if err != nil {
			return nil, fmt.Errorf("past sessions for %s: %w", v.BadgeID, err)
		}
		md.Step(fmt.Sprintf("found %d past sessions attended by the visitor", len(refs)))
		return refs, nil
	}

	md.Strategy = types.StrategySimilarVisitors
	similar, err := s.similarVisitors(ctx, v)
	switch {
	case errors.Is(err, similarity.ErrEmbedderUnavailable):
		s.logger.Warn(ctx, "similar visitor search unavailable", logger.String("badge_id", v.BadgeID))
		md.Step("similar visitor search unavailable: no embedding model configured")
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("find similar visitors: %w", err)
	}
	md.SimilarVisitors = similar
	metrics.RecordSimilarVisitors(len(similar))
	if len(similar) == 0 {
		md.Step("no similar returning visitors found")
		return nil, nil
	}

	ids := make([]string, len(similar))
	for i, sv := range similar {
		ids[i] = sv.Visitor.BadgeID
	}
	refs, err := s.store.SessionsForVisitors(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("sessions for similar visitors: %w", err)
	}
	md.Step(fmt.Sprintf("found %d similar visitors (%s) with %d past sessions",
		len(similar), strings.Join(ids, ", "), len(refs)))
	return refs, nil
}

func (s *Service) similarVisitors(ctx context.Context, v model.Visitor) ([]model.SimilarVisitor, error) {
	if cached, ok := s.cache.Similar(v.BadgeID); ok {
		return cached, nil
	}
	similar, err := s.matcher.FindSimilar(ctx, v, s.similarK)
	if err != nil {
		return nil, err
	}
	s.cache.SetSimilar(v.BadgeID, similar)
	return similar, nil
}

func (s *Service) thisYearSessions(ctx context.Context) ([]model.Session, error) {
	if cached, ok := s.cache.Sessions(); ok {
		return cached, nil
	}
	sessions, err := s.store.ThisYearSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("this year sessions: %w", err)
	}
	s.cache.SetSessions(sessions)
	return sessions, nil
}

func (s *Service) filter(ctx context.Context, md *types.Metadata, v model.Visitor, raw []model.Recommendation, useLLM bool) []model.Recommendation {
	if useLLM {
		if s.llm == nil {
			metrics.RecordLLMFallback("unavailable")
			s.logger.Warn(ctx, "llm filtering requested but not configured", logger.String("badge_id", v.BadgeID))
			md.Step("LLM filtering unavailable; returned unfiltered recommendations")
			return append([]model.Recommendation{}, raw...)
		}
		out := s.llm.Apply(ctx, v, raw)
		for _, n := range out.Notes {
			md.Step(n)
		}
		return out.Recommendations
	}

	out := s.rules.Apply(ctx, v, raw)
	for stage, removed := range out.Removed {
		metrics.RecordRuleRemovals(string(stage), removed)
	}
	for _, n := range out.Notes {
		md.Step(n)
	}
	return out.Recommendations
}

func (s *Service) fail(ctx context.Context, res *types.Result, kind types.ErrorKind, err error) {
	s.failures.Add(1)
	res.RawRecommendations = []model.Recommendation{}
	res.FilteredRecommendations = []model.Recommendation{}
	res.Metadata.Error = err.Error()
	res.Metadata.ErrorKind = kind
	res.Metadata.Step("failed: " + err.Error())
	if kind == types.ErrorKindNotFound {
		s.logger.Warn(ctx, "visitor not found",
			logger.String("request_id", res.Metadata.RequestID),
			logger.String("badge_id", res.Metadata.BadgeID))
		return
	}
	s.logger.Error(ctx, "recommendation pipeline failed",
		logger.String("request_id", res.Metadata.RequestID),
		logger.String("badge_id", res.Metadata.BadgeID),
		logger.Error(err))
}

func outcomeOf(res types.Result) string {
	switch {
	case res.Metadata.ErrorKind == types.ErrorKindNotFound:
		return outcomeNotFound
	case res.Failed():
		return outcomeError
	case len(res.FilteredRecommendations) == 0:
		return outcomeEmpty
	default:
		return outcomeOK
	}
}
