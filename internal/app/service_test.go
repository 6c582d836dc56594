package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	service "github.com/okian/sessionrec/internal/app"
	"github.com/okian/sessionrec/internal/adapters/cache"
	"github.com/okian/sessionrec/internal/adapters/repository"
	"github.com/okian/sessionrec/internal/domain/llmfilter"
	"github.com/okian/sessionrec/internal/domain/model"
	"github.com/okian/sessionrec/internal/domain/rules"
	"github.com/okian/sessionrec/internal/domain/similarity"
	"github.com/okian/sessionrec/internal/domain/types"
	"github.com/okian/sessionrec/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// showGraph seeds the returning-visitor scenario: V1 attended P1=[1,0] and
// P2=[0,1]; this year S1=[1,0] is an equine session and S2=[0,1] a nursing one.
func showGraph() *repository.MemoryStore {
	m := repository.NewMemoryStore()
	m.AddVisitor(model.Visitor{BadgeID: "V1", JobRole: "NA", PracticeType: "Equine", Country: "UK", Returning: true})
	m.AddVisitor(model.Visitor{BadgeID: "V2", JobRole: "Receptionist", Country: "IE"})
	m.AddVisitor(model.Visitor{BadgeID: "V3", JobRole: "Vet Nurse", PracticeType: "Small Animal", Country: "UK"})
	m.AddVisitor(model.Visitor{BadgeID: "R1", JobRole: "Vet Nurse", PracticeType: "Small Animal", Country: "FR", Returning: true})

	m.AddThisYearSession(model.Session{SessionID: "S1", Title: "Colic", Stream: "Equine", Embedding: []float64{1, 0}})
	m.AddThisYearSession(model.Session{SessionID: "S2", Title: "Triage", Stream: "Nursing", Embedding: []float64{0, 1}})

	m.AddPastSession(model.Session{SessionID: "P1", Embedding: []float64{1, 0}})
	m.AddPastSession(model.Session{SessionID: "P2", Embedding: []float64{0, 1}})

	m.RecordAttendance("V1", "P1", "P2")
	m.RecordAttendance("R1", "P2")
	return m
}

type flatEmbedder struct{ calls atomic.Int32 }

func (f *flatEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.calls.Add(1)
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0}
	}
	return out, nil
}

type fakeChat struct{ reply string }

func (f fakeChat) Complete(context.Context, string, string) (string, error) { return f.reply, nil }

type brokenStore struct {
	*repository.MemoryStore
	panicOnSessions bool
}

func (b brokenStore) ThisYearSessions(ctx context.Context) ([]model.Session, error) {
	if b.panicOnSessions {
		panic("graph driver exploded")
	}
	return nil, errors.New("connection refused")
}

func ids(recs []model.Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.SessionID
	}
	return out
}

func newService(store repository.Store, opts ...service.Option) *service.Service {
	svc, err := service.New(store, opts...)
	So(err, ShouldBeNil)
	return svc
}

func TestService_New(t *testing.T) {
	Convey("Given no store", t, func() {
		svc, err := service.New(nil)

		So(svc, ShouldBeNil)
		So(errors.Is(err, service.ErrNoStore), ShouldBeTrue)
	})

	Convey("Given a store and no options", t, func() {
		svc := newService(showGraph())
		stats := svc.GetStats()

		Convey("Then defaults are wired", func() {
			So(stats.LLMConfigured, ShouldBeFalse)
			So(stats.EmbedderEnabled, ShouldBeFalse)
			So(stats.RulePriority, ShouldResemble, []string{"practice_type", "role"})
		})
	})
}

func TestService_Visitors(t *testing.T) {
	Convey("Given a service over the show graph", t, func() {
		ctx := context.Background()
		svc := newService(showGraph())

		Convey("When listing visitors", func() {
			list, err := svc.GetAllVisitors(ctx)

			Convey("Then they are ordered by badge id", func() {
				So(err, ShouldBeNil)
				So(len(list), ShouldEqual, 4)
				So(list[0].BadgeID, ShouldEqual, "R1")
				So(list[3].BadgeID, ShouldEqual, "V3")
			})
		})

		Convey("When fetching a visitor", func() {
			v, err := svc.GetVisitorByBadgeID(ctx, "V1")
			_, missing := svc.GetVisitorByBadgeID(ctx, "NOPE")

			Convey("Then known badges resolve and are cached", func() {
				So(err, ShouldBeNil)
				So(v.PracticeType, ShouldEqual, "Equine")
				So(svc.GetStats().Caches[cache.NameVisitors], ShouldEqual, 1)
				So(errors.Is(missing, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_ReturningVisitor(t *testing.T) {
	Convey("Given a returning equine visitor", t, func() {
		ctx := context.Background()
		svc := newService(showGraph())

		Convey("When recommendations are requested", func() {
			res := svc.GetRecommendationsAndFilter(ctx, types.Request{BadgeID: "V1"})

			Convey("Then both sessions score 1.0 in target order", func() {
				So(res.Failed(), ShouldBeFalse)
				So(ids(res.RawRecommendations), ShouldResemble, []string{"S1", "S2"})
				So(res.RawRecommendations[0].Similarity, ShouldEqual, 1.0)
				So(res.RawRecommendations[1].Similarity, ShouldEqual, 1.0)
			})

			Convey("Then the equine practice keeps its own stream", func() {
				So(ids(res.FilteredRecommendations), ShouldResemble, []string{"S1", "S2"})
			})

			Convey("Then metadata describes the run", func() {
				So(res.Visitor.BadgeID, ShouldEqual, "V1")
				So(res.Metadata.RequestID, ShouldNotBeEmpty)
				So(res.Metadata.Strategy, ShouldEqual, types.StrategyHistory)
				So(res.Metadata.ReferenceSessions, ShouldEqual, 2)
				So(res.Metadata.RawCount, ShouldEqual, 2)
				So(res.Metadata.FilteredCount, ShouldEqual, 2)
				So(res.Metadata.ProcessingTimeMS, ShouldBeGreaterThanOrEqualTo, 0)
				So(len(res.Metadata.ProcessingSteps), ShouldBeGreaterThan, 3)
			})
		})

		Convey("When the visitor is a vet", func() {
			v := model.Visitor{BadgeID: "V1", JobRole: "Vet/Vet Surgeon", PracticeType: "Equine", Returning: true}
			res := svc.GetRecommendationsAndFilter(ctx, types.Request{Visitor: &v})

			Convey("Then the nursing session is filtered out", func() {
				So(ids(res.RawRecommendations), ShouldResemble, []string{"S1", "S2"})
				So(ids(res.FilteredRecommendations), ShouldResemble, []string{"S1"})
				So(res.Metadata.BadgeID, ShouldEqual, "V1")
			})
		})

		Convey("When the maximum is one", func() {
			res := svc.GetRecommendationsAndFilter(ctx, types.Request{BadgeID: "V1", MaxRecommendations: 1})

			So(ids(res.RawRecommendations), ShouldResemble, []string{"S1"})
		})

		Convey("When the minimum score is raised", func() {
			orth := model.Visitor{BadgeID: "R1", Returning: true}
			minScore := 0.5
			res := svc.GetRecommendationsAndFilter(ctx, types.Request{Visitor: &orth, MinScore: &minScore})

			Convey("Then only sessions at or above it remain", func() {
				So(ids(res.RawRecommendations), ShouldResemble, []string{"S2"})
			})
		})
	})
}

func TestService_NewVisitor(t *testing.T) {
	Convey("Given a new visitor and no embedding model", t, func() {
		ctx := context.Background()
		svc := newService(showGraph())

		res := svc.GetRecommendationsAndFilter(ctx, types.Request{BadgeID: "V2"})

		Convey("Then the result is empty without an error", func() {
			So(res.Failed(), ShouldBeFalse)
			So(res.RawRecommendations, ShouldBeEmpty)
			So(res.FilteredRecommendations, ShouldBeEmpty)
			So(res.Metadata.Strategy, ShouldEqual, types.StrategySimilarVisitors)
			So(res.Metadata.ProcessingSteps, ShouldContain, "similar visitor search unavailable: no embedding model configured")
		})
	})

	Convey("Given a new nurse and an embedding model", t, func() {
		ctx := context.Background()
		store := showGraph()
		emb := &flatEmbedder{}
		matcher := similarity.NewVisitorMatcher(store, emb)
		svc := newService(store, service.WithMatcher(matcher), service.WithSimilarVisitors(1))

		res := svc.GetRecommendationsAndFilter(ctx, types.Request{BadgeID: "V3"})

		Convey("Then history is borrowed from the closest returning visitor", func() {
			So(res.Failed(), ShouldBeFalse)
			So(len(res.Metadata.SimilarVisitors), ShouldEqual, 1)
			So(res.Metadata.SimilarVisitors[0].Visitor.BadgeID, ShouldEqual, "R1")
			So(res.Metadata.ReferenceSessions, ShouldEqual, 1)
			So(ids(res.RawRecommendations), ShouldResemble, []string{"S2", "S1"})
		})

		Convey("Then the nurse allowlist applies", func() {
			So(ids(res.FilteredRecommendations), ShouldResemble, []string{"S2"})
		})

		Convey("When asked again", func() {
			again := svc.GetRecommendationsAndFilter(ctx, types.Request{BadgeID: "V3"})

			Convey("Then the similar visitors come from the cache", func() {
				So(ids(again.FilteredRecommendations), ShouldResemble, []string{"S2"})
				So(emb.calls.Load(), ShouldEqual, int32(1))
			})
		})
	})
}

func TestService_LLMFiltering(t *testing.T) {
	Convey("Given a returning visitor asking for LLM filtering", t, func() {
		ctx := context.Background()
		req := types.Request{BadgeID: "V1", UseLLM: true}

		Convey("When no model is configured", func() {
			svc := newService(showGraph())
			res := svc.GetRecommendationsAndFilter(ctx, req)

			Convey("Then the unfiltered list comes back with a note", func() {
				So(ids(res.FilteredRecommendations), ShouldResemble, ids(res.RawRecommendations))
				So(res.Metadata.ProcessingSteps, ShouldContain, "LLM filtering unavailable; returned unfiltered recommendations")
			})
		})

		Convey("When a model answers", func() {
			f := llmfilter.New(fakeChat{reply: "```json\n[{\"session_id\":\"S2\"}]\n```"}, rules.DefaultConfig())
			svc := newService(showGraph(), service.WithLLMFilter(f))
			res := svc.GetRecommendationsAndFilter(ctx, req)

			Convey("Then its choice is applied", func() {
				So(ids(res.RawRecommendations), ShouldResemble, []string{"S1", "S2"})
				So(ids(res.FilteredRecommendations), ShouldResemble, []string{"S2"})
				So(svc.GetStats().LLMConfigured, ShouldBeTrue)
			})
		})
	})
}

func TestService_Failures(t *testing.T) {
	Convey("Given failure conditions", t, func() {
		ctx := context.Background()

		Convey("When the visitor does not exist", func() {
			svc := newService(showGraph())
			res := svc.GetRecommendationsAndFilter(ctx, types.Request{BadgeID: "GHOST"})

			Convey("Then a not-found result is returned", func() {
				So(res.Failed(), ShouldBeTrue)
				So(res.Metadata.ErrorKind, ShouldEqual, types.ErrorKindNotFound)
				So(res.Metadata.Error, ShouldContainSubstring, "GHOST")
				So(res.RawRecommendations, ShouldBeEmpty)
				So(res.FilteredRecommendations, ShouldBeEmpty)
				So(res.Visitor, ShouldBeNil)
			})
		})

		Convey("When the graph fails mid-pipeline", func() {
			svc := newService(brokenStore{MemoryStore: showGraph()})
			res := svc.GetRecommendationsAndFilter(ctx, types.Request{BadgeID: "V1"})

			Convey("Then an internal error is reported", func() {
				So(res.Metadata.ErrorKind, ShouldEqual, types.ErrorKindInternal)
				So(res.Metadata.Error, ShouldContainSubstring, "connection refused")
				So(res.RawRecommendations, ShouldBeEmpty)
				So(svc.GetStats().Failures, ShouldEqual, uint64(1))
			})
		})

		Convey("When a component panics", func() {
			svc := newService(brokenStore{MemoryStore: showGraph(), panicOnSessions: true})

			Convey("Then the panic is contained in the result", func() {
				var res types.Result
				So(func() { res = svc.GetRecommendationsAndFilter(ctx, types.Request{BadgeID: "V1"}) }, ShouldNotPanic)
				So(res.Metadata.ErrorKind, ShouldEqual, types.ErrorKindInternal)
				So(res.Metadata.Error, ShouldContainSubstring, "graph driver exploded")
				So(res.FilteredRecommendations, ShouldBeEmpty)
			})
		})

		Convey("When the badge id is blank", func() {
			svc := newService(showGraph())
			res := svc.GetRecommendationsAndFilter(ctx, types.Request{BadgeID: "  "})

			So(res.Metadata.ErrorKind, ShouldEqual, types.ErrorKindNotFound)
		})
	})
}

func TestService_ClearCaches(t *testing.T) {
	Convey("Given a service that has served a request", t, func() {
		ctx := context.Background()
		c := cache.New()
		cleared := 0
		c.OnClear(func() { cleared++ })
		svc := newService(showGraph(), service.WithCache(c))
		svc.GetRecommendationsAndFilter(ctx, types.Request{BadgeID: "V1"})

		So(svc.GetStats().Caches[cache.NameSessions], ShouldEqual, 1)
		So(svc.GetStats().Caches[cache.NameVisitors], ShouldEqual, 1)

		Convey("When caches are cleared", func() {
			svc.ClearCaches()

			Convey("Then every cache is empty and hooks ran", func() {
				for name, n := range svc.GetStats().Caches {
					So(n, ShouldEqual, 0)
					So(name, ShouldNotBeEmpty)
				}
				So(cleared, ShouldEqual, 1)
			})
		})
	})
}
