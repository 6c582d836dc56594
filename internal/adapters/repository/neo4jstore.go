package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/okian/sessionrec/internal/domain/dedupe"
	"github.com/okian/sessionrec/internal/domain/model"
	"github.com/okian/sessionrec/pkg/logger"
	"github.com/okian/sessionrec/pkg/metrics"
)

const (
	defaultNeo4jUser    = "neo4j"
	defaultNeo4jTimeout = 10 * time.Second
	defaultNeo4jPool    = 50
)

// lastYearIdentity matches either of last year's visitor labels.
const lastYearIdentity = `(p:Visitor_last_year_bva OR p:Visitor_last_year_lva)`

const (
	queryGetVisitor = `
MATCH (v:Visitor_this_year {BadgeId: $badge_id})
RETURN properties(v) AS props
LIMIT 1`

	queryListVisitors = `
MATCH (v:Visitor_this_year)
RETURN properties(v) AS props
ORDER BY v.BadgeId`

	queryThisYearSessions = `
MATCH (s:Sessions_this_year)
WHERE s.embedding IS NOT NULL
RETURN properties(s) AS props
ORDER BY s.session_id`

	queryPastSessions = `
MATCH (v:Visitor_this_year {BadgeId: $badge_id})-[:Same_Visitor]->(p)
WHERE ` + lastYearIdentity + `
MATCH (p)-[:attended_session]->(s:Sessions_past_year)
WHERE s.embedding IS NOT NULL
WITH DISTINCT s
RETURN properties(s) AS props
ORDER BY s.session_id`

	querySimilarCandidates = `
MATCH (o:Visitor_this_year)-[:Same_Visitor]->(p)-[:attended_session]->(:Sessions_past_year)
WHERE o.BadgeId <> $badge_id AND ` + lastYearIdentity + `
WITH DISTINCT o
WITH o,
  (CASE WHEN $job_role <> '' AND toLower(o.job_role) = toLower($job_role) THEN 1 ELSE 0 END +
   CASE WHEN $practice_type <> '' AND toLower(o.what_type_does_your_practice_specialise_in) = toLower($practice_type) THEN 1 ELSE 0 END +
   CASE WHEN $organisation_type <> '' AND toLower(o.organisation_type) = toLower($organisation_type) THEN 1 ELSE 0 END +
   CASE WHEN $country <> '' AND toLower(o.Country) = toLower($country) THEN 1 ELSE 0 END) AS overlap
WHERE overlap > 0
RETURN properties(o) AS props, overlap
ORDER BY overlap DESC, o.BadgeId
LIMIT $limit`

	queryReturningWithHistory = `
MATCH (o:Visitor_this_year)-[:Same_Visitor]->(p)-[:attended_session]->(:Sessions_past_year)
WHERE o.BadgeId <> $badge_id AND ` + lastYearIdentity + `
WITH DISTINCT o
RETURN properties(o) AS props
ORDER BY o.BadgeId
LIMIT $limit`

	querySessionsForVisitors = `
MATCH (o:Visitor_this_year)-[:Same_Visitor]->(p)-[:attended_session]->(s:Sessions_past_year)
WHERE o.BadgeId IN $badge_ids AND ` + lastYearIdentity + ` AND s.embedding IS NOT NULL
WITH DISTINCT s
RETURN properties(s) AS props
ORDER BY s.session_id`
)

// Neo4jConfig describes how to reach the graph.
type Neo4jConfig struct {
	URI         string
	User        string
	Password    string
	Database    string
	MaxPoolSize int
	Timeout     time.Duration
}

// OpenNeo4j creates a driver and verifies connectivity.
func OpenNeo4j(ctx context.Context, cfg Neo4jConfig) (neo4j.DriverWithContext, error) {
	if cfg.URI == "" {
		return nil, ErrNoDriver
	}
	if cfg.User == "" {
		cfg.User = defaultNeo4jUser
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultNeo4jTimeout
	}
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = defaultNeo4jPool
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.MaxPoolSize
		c.SocketConnectTimeout = cfg.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("init neo4j driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return driver, nil
}

// Neo4jStore implements Store on a Neo4j graph. Each call opens its own
// session on the driver's connection pool.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   logger.Logger
}

// NewNeo4jStore wraps an open driver.
func NewNeo4jStore(driver neo4j.DriverWithContext, opts ...Option) *Neo4jStore {
	s := &Neo4jStore{driver: driver, logger: logger.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetVisitor returns this year's visitor for badgeID.
func (s *Neo4jStore) GetVisitor(ctx context.Context, badgeID string) (model.Visitor, error) {
	records, err := s.read(ctx, "get_visitor", queryGetVisitor, map[string]any{"badge_id": badgeID})
	if err != nil {
		return model.Visitor{}, err
	}
	if len(records) == 0 {
		return model.Visitor{}, fmt.Errorf("%w: %s", ErrNotFound, badgeID)
	}
	return visitorFromProps(propsOf(records[0])), nil
}

// ListVisitors returns every visitor ordered by badge id.
func (s *Neo4jStore) ListVisitors(ctx context.Context) ([]model.VisitorSummary, error) {
	records, err := s.read(ctx, "list_visitors", queryListVisitors, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.VisitorSummary, 0, len(records))
	for _, r := range records {
		v := visitorFromProps(propsOf(r))
		if v.BadgeID == "" {
			continue
		}
		out = append(out, v.Summary())
	}
	return out, nil
}

// ThisYearSessions returns this year's sessions with embeddings.
func (s *Neo4jStore) ThisYearSessions(ctx context.Context) ([]model.Session, error) {
	records, err := s.read(ctx, "this_year_sessions", queryThisYearSessions, nil)
	if err != nil {
		return nil, err
	}
	return s.sessions(ctx, "this_year_sessions", records), nil
}

// PastSessionsForVisitor returns last year's sessions attended by badgeID.
func (s *Neo4jStore) PastSessionsForVisitor(ctx context.Context, badgeID string) ([]model.Session, error) {
	records, err := s.read(ctx, "past_sessions", queryPastSessions, map[string]any{"badge_id": badgeID})
	if err != nil {
		return nil, err
	}
	return s.sessions(ctx, "past_sessions", records), nil
}

// SimilarVisitorCandidates ranks returning visitors by profile overlap with v.
func (s *Neo4jStore) SimilarVisitorCandidates(ctx context.Context, v model.Visitor, poolSize int) ([]model.Visitor, error) {
	if poolSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, poolSize)
	}
	records, err := s.read(ctx, "similar_candidates", querySimilarCandidates, map[string]any{
		"badge_id":          v.BadgeID,
		"job_role":          queryValue(v.JobRole),
		"practice_type":     queryValue(v.PracticeType),
		"organisation_type": queryValue(v.OrganisationType),
		"country":           queryValue(v.Country),
		"limit":             int64(poolSize),
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Visitor, 0, len(records))
	for _, r := range records {
		c := visitorFromProps(propsOf(r))
		c.Returning = true
		out = append(out, c)
		s.logger.Debug(ctx, "similar candidate",
			logger.String("badge_id", c.BadgeID),
			logger.Int("overlap", intFromRecord(r, "overlap")))
	}
	return out, nil
}

// ReturningVisitorsWithHistory lists returning visitors with attendance.
func (s *Neo4jStore) ReturningVisitorsWithHistory(ctx context.Context, excludeBadgeID string, limit int) ([]model.Visitor, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	records, err := s.read(ctx, "returning_with_history", queryReturningWithHistory, map[string]any{
		"badge_id": excludeBadgeID,
		"limit":    int64(limit),
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Visitor, 0, len(records))
	for _, r := range records {
		c := visitorFromProps(propsOf(r))
		c.Returning = true
		out = append(out, c)
	}
	return out, nil
}

// SessionsForVisitors returns the union of last year's sessions of badgeIDs.
func (s *Neo4jStore) SessionsForVisitors(ctx context.Context, badgeIDs []string) ([]model.Session, error) {
	if len(badgeIDs) == 0 {
		return []model.Session{}, nil
	}
	records, err := s.read(ctx, "sessions_for_visitors", querySessionsForVisitors, map[string]any{"badge_ids": badgeIDs})
	if err != nil {
		return nil, err
	}
	sessions := s.sessions(ctx, "sessions_for_visitors", records)
	return dedupe.Unique(sessions, func(x model.Session) string { return x.SessionID }), nil
}

// Close closes the driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

func (s *Neo4jStore) sessions(ctx context.Context, query string, records []*neo4j.Record) []model.Session {
	out, skipped := sessionsFromRecords(records)
	if skipped > 0 {
		s.logger.Warn(ctx, "sessions skipped without usable embedding",
			logger.String("query", query),
			logger.Int("skipped", skipped))
	}
	return out
}

func (s *Neo4jStore) read(ctx context.Context, name, query string, params map[string]any) ([]*neo4j.Record, error) {
	if s.driver == nil {
		return nil, ErrNoDriver
	}
	start := time.Now()
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead, DatabaseName: s.database})
	defer func() { _ = session.Close(ctx) }()

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	metrics.RecordGraphQuery(name, float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordGraphError(name)
		s.logger.Error(ctx, "graph query failed", logger.String("query", name), logger.Error(err))
		return nil, fmt.Errorf("graph query %s: %w", name, err)
	}
	records, _ := out.([]*neo4j.Record)
	return records, nil
}
