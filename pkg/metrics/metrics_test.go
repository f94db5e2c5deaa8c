package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			registryOpt := WithPrometheusRegistry(prometheus.NewRegistry())

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(registryOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

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
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given metrics recording", t, func() {
		Convey("When recording acquisition metrics", func() {
			Convey("Then it should record fetch outcomes", func() {
				So(func() {
					RecordFileFetched()
					RecordFetchFailure()
					RecordFetchBytes(1 << 20)
					RecordFetchDuration(120.0)
					RecordOriginResponse("200")
					RecordOriginResponse("404")
				}, ShouldNotPanic)
			})

			Convey("And it should record parse outcomes", func() {
				So(func() {
					RecordFileParsed()
					RecordParseFailure()
					RecordRowsParsed(9965)
					RecordParseDuration(45.0)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording queue and worker metrics", func() {
			Convey("Then it should track queue movement", func() {
				So(func() {
					UpdateQueueDepth(6)
					UpdateQueueCapacity(12)
					RecordTaskEnqueued()
					RecordTaskDequeued()
					RecordEnqueueError()
				}, ShouldNotPanic)
			})

			Convey("And it should track worker behavior", func() {
				So(func() {
					UpdateWorkerCount(4)
					RecordTaskDuration(350.0)
					RecordTaskError()
				}, ShouldNotPanic)
			})
		})

		Convey("When recording assembly and artifact metrics", func() {
			Convey("Then it should track table sizes", func() {
				So(func() {
					UpdateCombinedRows("lab", 50000)
					UpdateCombinedRows("demo", 52000)
					UpdateJoinedRows(49000)
					RecordJoinDuration(80.0)
				}, ShouldNotPanic)
			})

			Convey("And it should track artifacts", func() {
				So(func() {
					RecordArtifactWritten("sqlite")
					RecordArtifactWritten("csv")
					UpdateArtifactRows("lab_combined", 50000)
					RecordPersistDuration(220.0)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording run metrics", func() {
			So(func() {
				RecordRunCompleted()
				RecordRunFailure()
				RecordEntrySkipped()
				RecordRunDuration(90000.0)
			}, ShouldNotPanic)
		})

		Convey("When recording HTTP metrics", func() {
			So(func() {
				RecordHTTPRequest("/healthz", "GET", "200")
				RecordHTTPRequestDuration("/healthz", "GET", "200", 1.5)
			}, ShouldNotPanic)
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the package registry", t, func() {
		Convey("When asking for it", func() {
			registry := GetRegistry()

			Convey("Then it should be the custom registry backing the globals", func() {
				So(registry, ShouldNotBeNil)

				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})
	})
}
