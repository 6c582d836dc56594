package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/sessionrec/internal/adapters/repository"
	"github.com/okian/sessionrec/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func sessionIDs(s []model.Session) []string {
	out := make([]string, len(s))
	for i, x := range s {
		out[i] = x.SessionID
	}
	return out
}

func seededStore() *repository.MemoryStore {
	m := repository.NewMemoryStore()
	m.AddVisitor(model.Visitor{BadgeID: "B3", JobRole: "Vet Nurse", Country: "UK"})
	m.AddVisitor(model.Visitor{BadgeID: "B1", JobRole: "Vet/Vet Surgeon", PracticeType: "Equine", Country: "UK", Returning: true})
	m.AddVisitor(model.Visitor{BadgeID: "B2", JobRole: "Vet Nurse", PracticeType: "Small Animal", Country: "FR", Returning: true})
	m.AddVisitor(model.Visitor{BadgeID: "B4", JobRole: "Receptionist", Country: "DE", Returning: true})

	m.AddThisYearSession(model.Session{SessionID: "T2", Embedding: []float64{0, 1}})
	m.AddThisYearSession(model.Session{SessionID: "T1", Embedding: []float64{1, 0}})
	m.AddThisYearSession(model.Session{SessionID: "T3"})

	m.AddPastSession(model.Session{SessionID: "P1", Embedding: []float64{1, 0}})
	m.AddPastSession(model.Session{SessionID: "P2", Embedding: []float64{0, 1}})
	m.AddPastSession(model.Session{SessionID: "P3"})

	m.RecordAttendance("B1", "P2", "P1", "P3")
	m.RecordAttendance("B2", "P2")
	m.RecordAttendance("B4", "P1")
	return m
}

func TestMemoryStore(t *testing.T) {
	convey.Convey("Given a seeded memory store", t, func() {
		ctx := context.Background()
		m := seededStore()
		var _ repository.Store = m

		convey.Convey("When looking up visitors", func() {
			v, err := m.GetVisitor(ctx, "B1")
			_, missing := m.GetVisitor(ctx, "nope")
			list, listErr := m.ListVisitors(ctx)

			convey.Convey("Then known badges resolve and unknown ones are not found", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(v.PracticeType, convey.ShouldEqual, "Equine")
				convey.So(errors.Is(missing, repository.ErrNotFound), convey.ShouldBeTrue)
			})

			convey.Convey("Then the list is ordered by badge id", func() {
				convey.So(listErr, convey.ShouldBeNil)
				convey.So(len(list), convey.ShouldEqual, 4)
				convey.So(list[0].BadgeID, convey.ShouldEqual, "B1")
				convey.So(list[3].BadgeID, convey.ShouldEqual, "B4")
			})
		})

		convey.Convey("When reading this year's sessions", func() {
			s, err := m.ThisYearSessions(ctx)

			convey.Convey("Then only embedded sessions come back ordered by id", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(sessionIDs(s), convey.ShouldResemble, []string{"T1", "T2"})
			})
		})

		convey.Convey("When reading a visitor's history", func() {
			s, err := m.PastSessionsForVisitor(ctx, "B1")
			none, noneErr := m.PastSessionsForVisitor(ctx, "B3")

			convey.Convey("Then sessions without embeddings are excluded", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(sessionIDs(s), convey.ShouldResemble, []string{"P1", "P2"})
				convey.So(noneErr, convey.ShouldBeNil)
				convey.So(none, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When finding overlap candidates for a new nurse", func() {
			target, _ := m.GetVisitor(ctx, "B3")
			c, err := m.SimilarVisitorCandidates(ctx, target, 20)

			convey.Convey("Then candidates share a feature and rank by overlap", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(c), convey.ShouldEqual, 2)
				convey.So(c[0].BadgeID, convey.ShouldEqual, "B1")
				convey.So(c[1].BadgeID, convey.ShouldEqual, "B2")
				convey.So(c[0].Returning, convey.ShouldBeTrue)
			})

			convey.Convey("Then the pool size bounds the result", func() {
				c1, err := m.SimilarVisitorCandidates(ctx, target, 1)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(c1), convey.ShouldEqual, 1)
			})

			convey.Convey("Then a non-positive pool is rejected", func() {
				_, err := m.SimilarVisitorCandidates(ctx, target, 0)
				convey.So(errors.Is(err, repository.ErrInvalidLimit), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When listing returning visitors with history", func() {
			r, err := m.ReturningVisitorsWithHistory(ctx, "B1", 10)

			convey.Convey("Then the excluded badge is skipped", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(r), convey.ShouldEqual, 2)
				convey.So(r[0].BadgeID, convey.ShouldEqual, "B2")
				convey.So(r[1].BadgeID, convey.ShouldEqual, "B4")
			})
		})

		convey.Convey("When unioning sessions of several visitors", func() {
			s, err := m.SessionsForVisitors(ctx, []string{"B2", "B1", "B4"})

			convey.Convey("Then each session appears once", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(sessionIDs(s), convey.ShouldResemble, []string{"P1", "P2"})
			})
		})

		convey.Convey("Then Close succeeds", func() {
			convey.So(m.Close(ctx), convey.ShouldBeNil)
		})
	})
}
