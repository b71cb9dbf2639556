package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	serviceInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vmspipe_info",
			Help: "Service information and uptime tracking",
		},
		[]string{"version", "service"},
	)

	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmspipe_fetch_attempts_total",
			Help: "Total fetch attempts against the Brazil API",
		},
		[]string{"endpoint", "outcome"}, // endpoint=devices/messages, outcome=success/network/status/parse
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmspipe_runs_total",
			Help: "Total pipeline runs processed",
		},
		[]string{"mode", "status"}, // mode=fetch/prepare/backfill, status=success/failure
	)

	RunDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vmspipe_run_duration_seconds",
			Help:    "Duration of pipeline runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68min
		},
		[]string{"mode"},
	)

	RowsJoinedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vmspipe_rows_joined_total",
			Help: "Total messages joined to their owning device",
		},
	)

	OrphanMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vmspipe_orphan_messages_total",
			Help: "Total messages dropped for having no matching device",
		},
	)

	RowsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmspipe_rows_written_total",
			Help: "Total records written to partition files by year",
		},
		[]string{"year"},
	)

	DaysWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vmspipe_days_written_total",
			Help: "Total day partition files written",
		},
	)

	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmspipe_storage_operations_total",
			Help: "Total object store operations",
		},
		[]string{"operation", "status"}, // operation=put/get, status=success/failure
	)

	CurrentRunsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vmspipe_current_runs",
			Help: "Number of runs currently being processed",
		},
	)

	QueueMessagesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vmspipe_queue_messages_processed_total",
			Help: "Total number of queue messages processed",
		},
	)
)

func Init() {
	serviceInfo.WithLabelValues("1.0", "vmspipe").Set(1)
}

// StartHealthServer serves a trivial liveness endpoint on its own port.
func StartHealthServer(port string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"running","service":"vmspipe"}`))
	})

	server := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("health server failed: %v", err)
		}
	}()
	log.Printf("Health endpoint running on :%s", port)
}

// StartMetricsServer exposes the Prometheus registry.
func StartMetricsServer(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("metrics server failed: %v", err)
		}
	}()
	log.Printf("Metrics endpoint running on :%s/metrics", port)
}
