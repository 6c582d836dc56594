package similarity_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/okian/sessionrec/internal/adapters/mq/worker"
	"github.com/okian/sessionrec/internal/domain/model"
	"github.com/okian/sessionrec/internal/domain/similarity"
	"github.com/smartystreets/goconvey/convey"
)

func session(id string, vec ...float64) model.Session {
	return model.Session{SessionID: id, Title: id, Embedding: vec}
}

func recIDs(recs []model.Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.SessionID
	}
	return out
}

type failingRunner struct{ err error }

func (f failingRunner) Run(context.Context, int, func(context.Context, int) error) error { return f.err }

func TestCosine(t *testing.T) {
	convey.Convey("Given pairs of vectors", t, func() {
		convey.So(similarity.Cosine([]float64{1, 0}, []float64{1, 0}), convey.ShouldAlmostEqual, 1.0)
		convey.So(similarity.Cosine([]float64{1, 0}, []float64{0, 1}), convey.ShouldAlmostEqual, 0.0)
		convey.So(similarity.Cosine([]float64{1, 1}, []float64{1, 0}), convey.ShouldAlmostEqual, 1/math.Sqrt2, 1e-9)

		convey.Convey("Then opposite vectors are clipped to zero", func() {
			convey.So(similarity.Cosine([]float64{1, 0}, []float64{-1, 0}), convey.ShouldEqual, 0)
		})

		convey.Convey("Then degenerate inputs score zero", func() {
			convey.So(similarity.Cosine(nil, nil), convey.ShouldEqual, 0)
			convey.So(similarity.Cosine([]float64{1}, []float64{1, 2}), convey.ShouldEqual, 0)
			convey.So(similarity.Cosine([]float64{0, 0}, []float64{1, 2}), convey.ShouldEqual, 0)
		})

		convey.Convey("Then Clip bounds values", func() {
			convey.So(similarity.Clip(1.0000001), convey.ShouldEqual, 1)
			convey.So(similarity.Clip(math.NaN()), convey.ShouldEqual, 0)
			convey.So(similarity.Clip(0.4), convey.ShouldEqual, 0.4)
		})
	})
}

func TestEngineRank(t *testing.T) {
	convey.Convey("Given an engine on an eight-worker pool", t, func() {
		ctx := context.Background()
		e := similarity.NewEngine(worker.NewPool(8))

		targets := []model.Session{
			session("T1", 1, 0, 0),
			session("T2", 0, 1, 0),
			session("T3", 0, 0, 1),
			session("T4", 1, 1, 0),
		}

		convey.Convey("When one reference matches one target exactly", func() {
			out, err := e.Rank(ctx, []model.Session{session("P1", 0, 1, 0)}, targets, 0)

			convey.Convey("Then that target ranks first with score one", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out[0].SessionID, convey.ShouldEqual, "T2")
				convey.So(out[0].Similarity, convey.ShouldAlmostEqual, 1.0)
				convey.So(len(out), convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When several references hit the same target", func() {
			refs := []model.Session{session("P1", 1, 0, 0), session("P2", 1, 0.2, 0), session("P3", 0, 0, 1)}
			out, err := e.Rank(ctx, refs, targets, 0)

			convey.Convey("Then each target appears once with its best score", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(out), convey.ShouldEqual, 4)
				byID := map[string]float64{}
				for _, r := range out {
					byID[r.SessionID] = r.Similarity
				}
				convey.So(byID["T1"], convey.ShouldAlmostEqual, 1.0)
				convey.So(byID["T3"], convey.ShouldAlmostEqual, 1.0)
			})

			convey.Convey("Then scores are in range and sorted descending", func() {
				for i, r := range out {
					convey.So(r.Similarity, convey.ShouldBeBetweenOrEqual, 0, 1)
					if i > 0 {
						convey.So(out[i-1].Similarity, convey.ShouldBeGreaterThanOrEqualTo, r.Similarity)
					}
				}
			})

			convey.Convey("Then equal scores keep target order", func() {
				convey.So(recIDs(out)[:2], convey.ShouldResemble, []string{"T1", "T3"})
			})
		})

		convey.Convey("When references are reordered", func() {
			refs := make([]model.Session, 0, 20)
			for i := range 20 {
				refs = append(refs, session("P", float64(i%3), float64(i%5), float64(i%7)))
			}
			reversed := make([]model.Session, len(refs))
			for i := range refs {
				reversed[len(refs)-1-i] = refs[i]
			}
			a, errA := e.Rank(ctx, refs, targets, 0)
			b, errB := e.Rank(ctx, reversed, targets, 0)

			convey.Convey("Then the result is identical", func() {
				convey.So(errA, convey.ShouldBeNil)
				convey.So(errB, convey.ShouldBeNil)
				convey.So(a, convey.ShouldResemble, b)
			})
		})

		convey.Convey("When a minimum score is set", func() {
			out, err := e.Rank(ctx, []model.Session{session("P1", 1, 0, 0)}, targets, 0.5)

			convey.Convey("Then lower scores are dropped", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(recIDs(out), convey.ShouldResemble, []string{"T1", "T4"})
			})
		})

		convey.Convey("When targets repeat a session id", func() {
			dup := append([]model.Session{}, targets...)
			dup = append(dup, session("T3", 1, 0, 0))
			out, err := e.Rank(ctx, []model.Session{session("P1", 1, 0, 0)}, dup, 0)

			convey.Convey("Then the id appears once with the max score", func() {
				convey.So(err, convey.ShouldBeNil)
				count := 0
				for _, r := range out {
					if r.SessionID == "T3" {
						count++
						convey.So(r.Similarity, convey.ShouldAlmostEqual, 1.0)
					}
				}
				convey.So(count, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When there are no references or targets", func() {
			a, errA := e.Rank(ctx, nil, targets, 0)
			b, errB := e.Rank(ctx, targets, nil, 0)

			convey.Convey("Then the result is empty", func() {
				convey.So(errA, convey.ShouldBeNil)
				convey.So(errB, convey.ShouldBeNil)
				convey.So(a, convey.ShouldBeEmpty)
				convey.So(b, convey.ShouldBeEmpty)
			})
		})
	})

	convey.Convey("Given a runner that fails", t, func() {
		boom := errors.New("boom")
		e := similarity.NewEngine(failingRunner{err: boom})
		_, err := e.Rank(context.Background(), []model.Session{session("P", 1)}, []model.Session{session("T", 1)}, 0)

		convey.Convey("Then Rank wraps the error", func() {
			convey.So(errors.Is(err, boom), convey.ShouldBeTrue)
		})
	})
}

func TestMergeMax(t *testing.T) {
	convey.Convey("Given partial score vectors", t, func() {
		a := []float64{0.1, 0.9, 0.3}
		b := []float64{0.5, 0.2, 0.3}

		convey.Convey("Then merging is order independent", func() {
			convey.So(similarity.MergeMax(3, [][]float64{a, b}), convey.ShouldResemble, similarity.MergeMax(3, [][]float64{b, a}))
			convey.So(similarity.MergeMax(3, [][]float64{a, nil, b}), convey.ShouldResemble, []float64{0.5, 0.9, 0.3})
		})
	})
}
