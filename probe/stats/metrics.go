package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

const Namespace = "driveprobe"

var (
	Gather = prometheus.NewRegistry()

	BytesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "blockio",
			Name:      "bytes_written",
			Help:      "Counter of bytes written to devices under test.",
		})

	BytesRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "blockio",
			Name:      "bytes_read",
			Help:      "Counter of bytes read back from devices under test.",
		})

	IOErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "blockio",
			Name:      "io_errors",
			Help:      "Counter of classified I/O errors.",
		}, []string{"kind"})

	TestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "validation",
			Name:      "tests_run",
			Help:      "Counter of component test runs.",
		}, []string{"test", "outcome"})

	TestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "validation",
			Name:      "test_duration_seconds",
			Help:      "Bucketed histogram of component test durations.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 18),
		}, []string{"test"})
)

func init() {
	Gather.MustRegister(BytesWritten)
	Gather.MustRegister(BytesRead)
	Gather.MustRegister(IOErrorCounter)
	Gather.MustRegister(TestCounter)
	Gather.MustRegister(TestDurationHistogram)
}
