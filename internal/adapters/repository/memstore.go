package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/sessionrec/internal/domain/dedupe"
	"github.com/okian/sessionrec/internal/domain/model"
	"github.com/okian/sessionrec/internal/domain/similarity"
)

// MemoryStore is an in-process graph with the same read semantics as
// Neo4jStore. Attendance is keyed by this year's badge id, standing in for
// the Same_Visitor identity edge.
type MemoryStore struct {
	mu       sync.RWMutex
	visitors map[string]model.Visitor
	thisYear map[string]model.Session
	past     map[string]model.Session
	attended map[string][]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		visitors: make(map[string]model.Visitor),
		thisYear: make(map[string]model.Session),
		past:     make(map[string]model.Session),
		attended: make(map[string][]string),
	}
}

// AddVisitor inserts or replaces a visitor.
func (m *MemoryStore) AddVisitor(v model.Visitor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visitors[v.BadgeID] = v
}

// AddThisYearSession inserts or replaces a this-year session.
func (m *MemoryStore) AddThisYearSession(s model.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thisYear[s.SessionID] = s
}

// AddPastSession inserts or replaces a last-year session.
func (m *MemoryStore) AddPastSession(s model.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.past[s.SessionID] = s
}

// RecordAttendance links a visitor to last-year sessions.
func (m *MemoryStore) RecordAttendance(badgeID string, sessionIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attended[badgeID] = append(m.attended[badgeID], sessionIDs...)
}

// GetVisitor returns the visitor for badgeID.
func (m *MemoryStore) GetVisitor(_ context.Context, badgeID string) (model.Visitor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.visitors[badgeID]
	if !ok {
		return model.Visitor{}, fmt.Errorf("%w: %s", ErrNotFound, badgeID)
	}
	return v, nil
}

// ListVisitors returns all visitors ordered by badge id.
func (m *MemoryStore) ListVisitors(_ context.Context) ([]model.VisitorSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.VisitorSummary, 0, len(m.visitors))
	for _, v := range m.visitors {
		out = append(out, v.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BadgeID < out[j].BadgeID })
	return out, nil
}

// ThisYearSessions returns this year's sessions with embeddings ordered by id.
func (m *MemoryStore) ThisYearSessions(_ context.Context) ([]model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Session, 0, len(m.thisYear))
	for _, s := range m.thisYear {
		if len(s.Embedding) > 0 {
			out = append(out, s)
		}
	}
	sortSessions(out)
	return out, nil
}

// PastSessionsForVisitor returns last year's sessions attended by badgeID.
func (m *MemoryStore) PastSessionsForVisitor(_ context.Context, badgeID string) ([]model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pastSessionsLocked([]string{badgeID}), nil
}

// SimilarVisitorCandidates ranks visitors with history by profile overlap.
func (m *MemoryStore) SimilarVisitorCandidates(_ context.Context, v model.Visitor, poolSize int) ([]model.Visitor, error) {
	if poolSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, poolSize)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		v       model.Visitor
		overlap int
	}
	var pool []scored
	for _, c := range m.withHistoryLocked(v.BadgeID) {
		if n := similarity.FeatureOverlap(v, c); n > 0 {
			pool = append(pool, scored{v: c, overlap: n})
		}
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].overlap != pool[j].overlap {
			return pool[i].overlap > pool[j].overlap
		}
		return pool[i].v.BadgeID < pool[j].v.BadgeID
	})
	if len(pool) > poolSize {
		pool = pool[:poolSize]
	}
	out := make([]model.Visitor, len(pool))
	for i, p := range pool {
		out[i] = p.v
	}
	return out, nil
}

// ReturningVisitorsWithHistory lists visitors with attendance by badge id.
func (m *MemoryStore) ReturningVisitorsWithHistory(_ context.Context, excludeBadgeID string, limit int) ([]model.Visitor, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.withHistoryLocked(excludeBadgeID)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SessionsForVisitors returns the union of last year's sessions of badgeIDs.
func (m *MemoryStore) SessionsForVisitors(_ context.Context, badgeIDs []string) ([]model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pastSessionsLocked(badgeIDs), nil
}

// Close is a no-op.
func (m *MemoryStore) Close(context.Context) error { return nil }

func (m *MemoryStore) withHistoryLocked(exclude string) []model.Visitor {
	out := make([]model.Visitor, 0, len(m.attended))
	for badge, ids := range m.attended {
		if badge == exclude || len(ids) == 0 {
			continue
		}
		v, ok := m.visitors[badge]
		if !ok {
			continue
		}
		v.Returning = true
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BadgeID < out[j].BadgeID })
	return out
}

func (m *MemoryStore) pastSessionsLocked(badgeIDs []string) []model.Session {
	seen := dedupe.NewSet(len(m.past))
	var out []model.Session
	for _, badge := range badgeIDs {
		for _, id := range m.attended[badge] {
			s, ok := m.past[id]
			if !ok || len(s.Embedding) == 0 || seen.SeenAndRecord(id) {
				continue
			}
			out = append(out, s)
		}
	}
	sortSessions(out)
	if out == nil {
		out = []model.Session{}
	}
	return out
}

func sortSessions(s []model.Session) {
	sort.Slice(s, func(i, j int) bool { return s[i].SessionID < s[j].SessionID })
}
