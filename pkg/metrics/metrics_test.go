package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with custom options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("rec"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(m, ShouldNotBeNil)
				m.cacheClears.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_rec_cache_clears_total")
			})
		})

		Convey("When two managers share one registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording rule removals", func() {
			before := testutil.ToFloat64(globalManager.ruleRemovals.WithLabelValues("role"))
			RecordRuleRemovals("role", 3)
			RecordRuleRemovals("role", 0)

			Convey("Then only positive removals are added", func() {
				So(testutil.ToFloat64(globalManager.ruleRemovals.WithLabelValues("role")), ShouldEqual, before+3)
			})
		})

		Convey("When recording cache lookups", func() {
			hits := testutil.ToFloat64(globalManager.cacheRequests.WithLabelValues("visitors", "hit"))
			misses := testutil.ToFloat64(globalManager.cacheRequests.WithLabelValues("visitors", "miss"))
			RecordCacheHit("visitors")
			RecordCacheMiss("visitors")
			RecordCacheMiss("visitors")

			Convey("Then hits and misses are labelled", func() {
				So(testutil.ToFloat64(globalManager.cacheRequests.WithLabelValues("visitors", "hit")), ShouldEqual, hits+1)
				So(testutil.ToFloat64(globalManager.cacheRequests.WithLabelValues("visitors", "miss")), ShouldEqual, misses+2)
			})
		})

		Convey("When updating gauges", func() {
			UpdateWorkerActiveCount(5)
			UpdateCacheEntries("sessions", 42)

			Convey("Then the values are set", func() {
				So(testutil.ToFloat64(globalManager.workerActiveCount), ShouldEqual, 5)
				So(testutil.ToFloat64(globalManager.cacheEntries.WithLabelValues("sessions")), ShouldEqual, 42)
			})
		})

		Convey("When recording the remaining series", func() {
			So(func() {
				RecordRecommendation("rules", "ok", 12)
				RecordCandidates(10, 4)
				RecordSimilarVisitors(3)
				RecordLLMCall("chat", "ok", 100)
				RecordLLMFallback("parse")
				RecordCacheClear()
				RecordGraphQuery("visitor", 2)
				RecordGraphError("visitor")
				RecordWorkerProcessingLatency(1)
				RecordWorkerError()
				RecordHTTPRequest("/visitors", "GET", "200")
				RecordHTTPRequestDuration("/visitors", "GET", "200", 0.01)
				RecordErrorByEndpoint("/visitors", "GET", "not_found")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(10)
			}, ShouldNotPanic)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
