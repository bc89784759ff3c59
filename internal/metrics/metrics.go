package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/sparkify/datalake-etl/internal/domain"
)

const namespace = "datalake_etl"

// Registry holds every ETL collector. It is separate from the default registry so a
// push carries only run metrics.
var Registry = prometheus.NewRegistry()

var (
	inputFilesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "input",
		Name:      "files_total",
		Help:      "Number of input objects matched, by dataset and outcome.",
	}, []string{"dataset", "outcome"})

	inputRecordsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "input",
		Name:      "records_total",
		Help:      "Number of input records decoded per dataset.",
	}, []string{"dataset"})

	inputMalformedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "input",
		Name:      "malformed_records_total",
		Help:      "Number of input lines skipped as malformed per dataset.",
	}, []string{"dataset"})

	tableRowsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "output",
		Name:      "table_rows",
		Help:      "Rows written to each table by the last run.",
	}, []string{"table"})

	tableBytesGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "output",
		Name:      "table_bytes",
		Help:      "Bytes written to each table by the last run.",
	}, []string{"table"})

	joinRowsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "songplay_join",
		Name:      "rows",
		Help:      "Event rows of the songplays join by outcome.",
	}, []string{"outcome"})

	joinAmbiguousGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "songplay_join",
		Name:      "ambiguous_keys",
		Help:      "Song titles matched by events that resolve to more than one song.",
	})

	runsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "run",
		Name:      "total",
		Help:      "Number of finished runs by status.",
	}, []string{"status"})

	runDurationGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "run",
		Name:      "duration_seconds",
		Help:      "Wall time of the last finished run.",
	})

	lastSuccessGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "run",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful run.",
	})
)

func init() {
	Registry.MustRegister(
		inputFilesCounter,
		inputRecordsCounter,
		inputMalformedCounter,
		tableRowsGauge,
		tableBytesGauge,
		joinRowsGauge,
		joinAmbiguousGauge,
		runsCounter,
		runDurationGauge,
		lastSuccessGauge,
	)
}

// RecordRead records the outcome of reading one input dataset
func RecordRead(dataset string, stats domain.ReadStats) {
	inputFilesCounter.WithLabelValues(dataset, "read").Add(float64(stats.Files))
	inputFilesCounter.WithLabelValues(dataset, "skipped").Add(float64(stats.SkippedFiles))
	inputRecordsCounter.WithLabelValues(dataset).Add(float64(stats.Records))
	inputMalformedCounter.WithLabelValues(dataset).Add(float64(stats.Malformed))
}

// RecordWrite records the size of one written table
func RecordWrite(table string, stats domain.WriteStats) {
	tableRowsGauge.WithLabelValues(table).Set(float64(stats.Rows))
	tableBytesGauge.WithLabelValues(table).Set(float64(stats.Bytes))
}

// RecordJoin records the match counts of the songplays join
func RecordJoin(stats domain.JoinStats) {
	joinRowsGauge.WithLabelValues("matched").Set(float64(stats.Matched))
	joinRowsGauge.WithLabelValues("unmatched").Set(float64(stats.Unmatched))
	joinRowsGauge.WithLabelValues("missing_key").Set(float64(stats.MissingKey))
	joinRowsGauge.WithLabelValues("output").Set(float64(stats.OutputRows))
	joinAmbiguousGauge.Set(float64(stats.AmbiguousKeys))
}

// RecordRun records a finished run
func RecordRun(summary *domain.RunSummary) {
	runsCounter.WithLabelValues(string(summary.Status)).Inc()
	runDurationGauge.Set(summary.Duration().Seconds())
	if summary.Status == domain.RunStatusSucceeded && !summary.FinishedAt.IsZero() {
		lastSuccessGauge.Set(float64(summary.FinishedAt.Unix()))
	}
}

// Push sends the registry to a Prometheus Pushgateway, grouped by job
func Push(ctx context.Context, url, job string) error {
	err := push.New(url, job).
		Gatherer(Registry).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
