package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("sync"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then its collectors are registered and usable", func() {
				So(m, ShouldNotBeNil)
				m.syncRuns.WithLabelValues("meta_ads", "Succeeded").Inc()
				So(testutil.ToFloat64(m.syncRuns.WithLabelValues("meta_ads", "Succeeded")), ShouldEqual, 1)
				n, err := testutil.GatherAndCount(registry, "test_sync_sync_runs_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})
	})
}

func TestPackageRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording pipeline events", func() {
			before := testutil.ToFloat64(globalManager.recordsUpserted.WithLabelValues("tiktok_ads"))
			RecordRecordsUpserted("tiktok_ads", 3)
			RecordRecordsUpserted("tiktok_ads", 0)

			Convey("Then counters move by the recorded amount", func() {
				So(testutil.ToFloat64(globalManager.recordsUpserted.WithLabelValues("tiktok_ads")), ShouldEqual, before+3)
			})
		})

		Convey("When recording in-flight transitions", func() {
			IncSyncInFlight()
			IncSyncInFlight()
			DecSyncInFlight()

			Convey("Then the gauge reflects the balance", func() {
				So(testutil.ToFloat64(globalManager.syncInFlight), ShouldBeGreaterThanOrEqualTo, 1)
				DecSyncInFlight()
			})
		})

		Convey("Then no recorder panics on empty labels", func() {
			So(func() {
				RecordSyncRun("", "", 0)
				RecordSyncRejected("")
				RecordAccountResult("", "")
				RecordAdapterCall("", "", 0)
				RecordAdapterRetry("", "")
				RecordMappingError("", "")
				RecordStoreLatency("", 0)
				RecordComparison("", "")
				RecordCompositeScore(50)
				RecordScoreUnavailable("")
				RecordAnomaly("", "")
				RecordAlert("")
				UpdateQueueSize(0)
				RecordQueueRejected("")
				UpdateWorkerCount(0)
				RecordHTTPRequest("", "", "200", 1)
				RecordError("", "")
			}, ShouldNotPanic)
		})
	})
}

func TestDisabledManager(t *testing.T) {
	Convey("Given metrics are disabled", t, func() {
		prev := globalManager
		globalManager = NewManager(WithPrometheusRegistry(prometheus.NewRegistry()), WithMetricsEnabled(false))
		defer func() { globalManager = prev }()

		RecordAlert("above")

		Convey("Then recorders are no-ops", func() {
			So(testutil.ToFloat64(globalManager.alerts.WithLabelValues("above")), ShouldEqual, 0)
		})
	})
}
