package similarity_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/okian/sessionrec/internal/domain/model"
	"github.com/okian/sessionrec/internal/domain/similarity"
	"github.com/smartystreets/goconvey/convey"
)

type stubSource struct {
	overlap  []model.Visitor
	relaxed  []model.Visitor
	err      error
	relaxHit int
}

func (s *stubSource) SimilarVisitorCandidates(context.Context, model.Visitor, int) ([]model.Visitor, error) {
	return s.overlap, s.err
}

func (s *stubSource) ReturningVisitorsWithHistory(context.Context, string, int) ([]model.Visitor, error) {
	s.relaxHit++
	return s.relaxed, nil
}

// countryEmbedder maps a profile to a one-hot vector keyed by its country.
type countryEmbedder struct{ short bool }

func (c countryEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for _, t := range texts {
		switch {
		case strings.Contains(t, "country: UK"):
			out = append(out, []float64{1, 0})
		default:
			out = append(out, []float64{0, 1})
		}
	}
	if c.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func TestFeatureOverlap(t *testing.T) {
	convey.Convey("Given two visitor profiles", t, func() {
		a := model.Visitor{JobRole: "Vet Nurse", PracticeType: "Equine", OrganisationType: "NA", Country: "UK"}
		b := model.Visitor{JobRole: "vet nurse", PracticeType: "Small Animal", OrganisationType: "NA", Country: "uk"}

		convey.Convey("Then equal present features count, NA never does", func() {
			convey.So(similarity.FeatureOverlap(a, b), convey.ShouldEqual, 2)
			convey.So(similarity.FeatureOverlap(a, a), convey.ShouldEqual, 3)
			convey.So(similarity.FeatureOverlap(model.Visitor{}, model.Visitor{}), convey.ShouldEqual, 0)
		})
	})
}

func TestFindSimilar(t *testing.T) {
	convey.Convey("Given a new visitor from the UK", t, func() {
		ctx := context.Background()
		target := model.Visitor{BadgeID: "NEW", JobRole: "Vet Nurse", Country: "UK"}
		r1 := model.Visitor{BadgeID: "R1", JobRole: "Vet Nurse", Country: "UK", Returning: true}
		r2 := model.Visitor{BadgeID: "R2", JobRole: "Vet Nurse", Country: "FR", Returning: true}
		r3 := model.Visitor{BadgeID: "R3", JobRole: "Receptionist", Country: "DE", Returning: true}

		convey.Convey("When the overlap pool is large enough", func() {
			src := &stubSource{overlap: []model.Visitor{r2, r1}}
			m := similarity.NewVisitorMatcher(src, countryEmbedder{})
			out, err := m.FindSimilar(ctx, target, 2)

			convey.Convey("Then the blended score ranks the closest first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(out), convey.ShouldEqual, 2)
				convey.So(out[0].Visitor.BadgeID, convey.ShouldEqual, "R1")
				convey.So(out[0].FeatureOverlap, convey.ShouldEqual, 2)
				convey.So(out[0].Score, convey.ShouldAlmostEqual, 0.7*1+0.3*2.0/4)
				convey.So(out[1].Score, convey.ShouldAlmostEqual, 0.3*1.0/4)
				convey.So(src.relaxHit, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the overlap pool is smaller than k", func() {
			src := &stubSource{overlap: []model.Visitor{r2}, relaxed: []model.Visitor{r2, r3, target}}
			m := similarity.NewVisitorMatcher(src, countryEmbedder{}, similarity.WithPoolSize(5))
			out, err := m.FindSimilar(ctx, target, 3)

			convey.Convey("Then the pool is widened without duplicates or the visitor itself", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(src.relaxHit, convey.ShouldEqual, 1)
				convey.So(len(out), convey.ShouldEqual, 2)
				convey.So(out[0].Visitor.BadgeID, convey.ShouldEqual, "R2")
				convey.So(out[1].Visitor.BadgeID, convey.ShouldEqual, "R3")
			})
		})

		convey.Convey("When custom weights are set", func() {
			src := &stubSource{overlap: []model.Visitor{r1}}
			m := similarity.NewVisitorMatcher(src, countryEmbedder{}, similarity.WithWeights(0, 1))
			out, err := m.FindSimilar(ctx, target, 1)

			convey.Convey("Then only overlap contributes", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out[0].Score, convey.ShouldAlmostEqual, 0.5)
			})
		})

		convey.Convey("When nobody is available", func() {
			m := similarity.NewVisitorMatcher(&stubSource{}, countryEmbedder{})
			out, err := m.FindSimilar(ctx, target, 3)

			convey.Convey("Then the result is empty without error", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When no embedder is configured", func() {
			m := similarity.NewVisitorMatcher(&stubSource{overlap: []model.Visitor{r1}}, nil)
			_, err := m.FindSimilar(ctx, target, 3)

			convey.Convey("Then the matcher reports it is unavailable", func() {
				convey.So(m.Available(), convey.ShouldBeFalse)
				convey.So(errors.Is(err, similarity.ErrEmbedderUnavailable), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the embedder drops a vector", func() {
			m := similarity.NewVisitorMatcher(&stubSource{overlap: []model.Visitor{r1, r2, r3}}, countryEmbedder{short: true})
			_, err := m.FindSimilar(ctx, target, 3)

			convey.So(errors.Is(err, similarity.ErrEmbeddingMismatch), convey.ShouldBeTrue)
		})

		convey.Convey("When the source fails", func() {
			boom := errors.New("graph down")
			m := similarity.NewVisitorMatcher(&stubSource{err: boom}, countryEmbedder{})
			_, err := m.FindSimilar(ctx, target, 3)

			convey.So(errors.Is(err, boom), convey.ShouldBeTrue)
		})

		convey.Convey("When k is zero", func() {
			m := similarity.NewVisitorMatcher(&stubSource{overlap: []model.Visitor{r1}}, countryEmbedder{})
			out, err := m.FindSimilar(ctx, target, 0)

			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldBeEmpty)
		})
	})
}
