package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesPolled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siphon_messages_polled_total",
		Help: "Messages pulled from the broker, per table.",
	}, []string{"table"})

	RowsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siphon_rows_ingested_total",
		Help: "Rows accepted by the sink, per table.",
	}, []string{"table"})

	OffsetCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siphon_offset_commits_total",
		Help: "Offset commit calls that reached the broker, per table.",
	}, []string{"table"})

	BrokenMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siphon_broken_messages_total",
		Help: "Messages skipped because they failed to parse, per table.",
	}, []string{"table"})

	StalledCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siphon_stalled_cycles_total",
		Help: "Streaming cycles that ended with at least one stalled consumer.",
	}, []string{"table"})

	BuffersInUse = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "siphon_buffers_in_use",
		Help: "Read buffers currently checked out of the pool, per table.",
	}, []string{"table"})
)

func Expose(port int) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
	}()
}
