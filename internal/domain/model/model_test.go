package model_test

import (
	"testing"

	model "github.com/okian/sessionrec/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestVisitor(t *testing.T) {
	convey.Convey("Given a visitor with extra attributes", t, func() {
		v := model.Visitor{
			BadgeID:          "B1",
			JobRole:          "Vet Nurse",
			PracticeType:     "Equine",
			OrganisationType: "Practice",
			Country:          "UK",
			Returning:        true,
			Extra:            map[string]string{"z_key": "z", "a_key": "a"},
		}

		convey.Convey("When building its profile", func() {
			p := v.Profile()

			convey.Convey("Then core attributes come first and extras are sorted", func() {
				convey.So(p[0], convey.ShouldResemble, [2]string{"badge_id", "B1"})
				convey.So(len(p), convey.ShouldEqual, 7)
				convey.So(p[5][0], convey.ShouldEqual, "a_key")
				convey.So(p[6][0], convey.ShouldEqual, "z_key")
			})
		})

		convey.Convey("When summarising", func() {
			s := v.Summary()

			convey.Convey("Then list fields are copied", func() {
				convey.So(s.BadgeID, convey.ShouldEqual, "B1")
				convey.So(s.Returning, convey.ShouldBeTrue)
				convey.So(s.Country, convey.ShouldEqual, "UK")
			})
		})

		convey.Convey("Then its feature text names every compared attribute", func() {
			txt := v.FeatureText()
			convey.So(txt, convey.ShouldContainSubstring, "Vet Nurse")
			convey.So(txt, convey.ShouldContainSubstring, "Equine")
			convey.So(txt, convey.ShouldContainSubstring, "Practice")
			convey.So(txt, convey.ShouldContainSubstring, "UK")
		})
	})
}

func TestSessionRecommend(t *testing.T) {
	convey.Convey("Given a session", t, func() {
		s := model.Session{SessionID: "S1", Title: "Colic", Stream: "Equine;Surgery", Theatre: "T1", Embedding: []float64{1, 0}}

		convey.Convey("When recommending it with a score", func() {
			r := s.Recommend(0.75)

			convey.Convey("Then the recommendation carries the session annotations", func() {
				convey.So(r.SessionID, convey.ShouldEqual, "S1")
				convey.So(r.Stream, convey.ShouldEqual, "Equine;Surgery")
				convey.So(r.Theatre, convey.ShouldEqual, "T1")
				convey.So(r.Similarity, convey.ShouldEqual, 0.75)
			})
		})
	})
}
