package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricsEndpoint = "0.0.0.0:9090"
)

var (
	SyncRunCounter       *prometheus.CounterVec
	SyncRunTimeSummary   *prometheus.SummaryVec
	DevicesFoundCounter  prometheus.Counter
	EventOutcomeCounter  *prometheus.CounterVec
	CollaboratorErrCount *prometheus.CounterVec
	SnapshotRefreshCount *prometheus.CounterVec
)

func init() {
	SyncRunCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fortisync_runs_total",
			Help: "A counter metric to measure the total count of reconciliation runs by outcome",
		},
		[]string{"outcome"}, // outcome is success/failed
	)

	SyncRunTimeSummary = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "fortisync_run_duration_seconds",
			Help: "A summary metric to measure the total time spent in each reconciliation run",
		},
		[]string{"outcome"},
	)

	DevicesFoundCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fortisync_expiring_devices_found",
			Help: "A counter metric to measure the sum of expiring devices found across runs",
		},
	)

	EventOutcomeCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fortisync_calendar_events_total",
			Help: "A counter metric to measure reminder event outcomes per run pair",
		},
		[]string{"outcome"}, // outcome is created/skipped/failed
	)

	CollaboratorErrCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fortisync_collaborator_error_count",
			Help: "A counter metric to measure the total count of errors calling the external collaborators.",
		},
		[]string{"collaborator"}, // forticare/zoho/snapshot
	)

	SnapshotRefreshCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fortisync_snapshot_refresh_total",
			Help: "A counter metric to measure asset snapshot refreshes from the vendor API",
		},
		[]string{"outcome"},
	)
}

// ListenAndServe exposes prometheus metrics as /metrics
func ListenAndServe() {
	go func() {
		http.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              MetricsEndpoint,
			ReadHeaderTimeout: 2 * time.Second, // nolint:gomnd // time duration value is clear as is.
		}

		if err := server.ListenAndServe(); err != nil {
			log.Println(err)
		}
	}()
}
