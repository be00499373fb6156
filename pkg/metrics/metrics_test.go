package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "test-namespace")
				So(manager.subsystem, ShouldEqual, "test-subsystem")
			})
		})
	})
}

func TestGlobalHelpers(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording through the package helpers", func() {
			// These must not panic even before any explicit setup.
			So(func() {
				RecordRecomputeCycle()
				RecordRecomputeFailure()
				ObserveRecomputeDuration(12.5)
				SetLastRecompute(1700000000)
				RecordSingleRecompute()
				RecordRatingFallback()
				UpdateTrackedPlayers(42)
				RecordCacheHit()
				RecordCacheMiss()
				RecordCacheError()
				RecordConnection()
				RecordRejectedConnection()
				UpdateCurrentConnections(3)
				UpdatePeakConnections(7)
				RecordMessageSent("ranking_update")
				RecordDeliveryError()
				RecordHTTPRequest("rankings", "GET", "200")
				RecordHTTPRequestDuration("rankings", "GET", "200", 3.2)
			}, ShouldNotPanic)
		})

		Convey("When asking for the registry", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
