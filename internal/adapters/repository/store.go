// Package repository reads visitors, sessions and attendance history from
// the show graph.
package repository

import (
	"context"

	"github.com/okian/sessionrec/internal/domain/model"
)

// Store is the read-only view of the graph used by the recommender.
type Store interface {
	// GetVisitor returns this year's visitor for badgeID.
	// Returns ErrNotFound if the badge is unknown.
	GetVisitor(ctx context.Context, badgeID string) (model.Visitor, error)

	// ListVisitors returns every visitor ordered by badge id.
	ListVisitors(ctx context.Context) ([]model.VisitorSummary, error)

	// ThisYearSessions returns this year's sessions that carry an embedding,
	// ordered by session id.
	ThisYearSessions(ctx context.Context) ([]model.Session, error)

	// PastSessionsForVisitor returns last year's sessions the visitor attended
	// through any linked last-year identity.
	PastSessionsForVisitor(ctx context.Context, badgeID string) ([]model.Session, error)

	// SimilarVisitorCandidates returns returning visitors with attendance
	// history sharing at least one profile feature with v, best overlap first.
	SimilarVisitorCandidates(ctx context.Context, v model.Visitor, poolSize int) ([]model.Visitor, error)

	// ReturningVisitorsWithHistory returns returning visitors with attendance
	// history regardless of profile, ordered by badge id.
	ReturningVisitorsWithHistory(ctx context.Context, excludeBadgeID string, limit int) ([]model.Visitor, error)

	// SessionsForVisitors returns the de-duplicated union of last year's
	// sessions attended by the given visitors.
	SessionsForVisitors(ctx context.Context, badgeIDs []string) ([]model.Session, error)

	// Close releases the underlying connections.
	Close(ctx context.Context) error
}
