package report

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dbsmedya/athenastats/internal/stats"
)

// textfileMetrics holds the gauges describing one execution summary.
type textfileMetrics struct {
	registry    *prometheus.Registry
	dataScanned prometheus.Gauge
	queryTime   *prometheus.GaugeVec
	queryRows   *prometheus.GaugeVec
	queryBytes  *prometheus.GaugeVec
	stageRows   *prometheus.GaugeVec
	stageTime   *prometheus.GaugeVec
}

func newTextfileMetrics(s *stats.ExecutionSummary) *textfileMetrics {
	constLabels := prometheus.Labels{
		"query_execution_id": s.QueryExecutionID,
		"work_group":         s.WorkGroup,
	}

	m := &textfileMetrics{
		registry: prometheus.NewRegistry(),
		dataScanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "athena_query_data_scanned_bytes",
			Help:        "Bytes scanned by the query execution.",
			ConstLabels: constLabels,
		}),
		queryTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "athena_query_time_milliseconds",
			Help:        "Query execution time by phase.",
			ConstLabels: constLabels,
		}, []string{"phase"}),
		queryRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "athena_query_rows",
			Help:        "Rows read and produced by the query.",
			ConstLabels: constLabels,
		}, []string{"direction"}),
		queryBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "athena_query_bytes",
			Help:        "Bytes read and produced by the query.",
			ConstLabels: constLabels,
		}, []string{"direction"}),
		stageRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "athena_stage_rows",
			Help:        "Rows read and produced by each stage.",
			ConstLabels: constLabels,
		}, []string{"stage_id", "direction"}),
		stageTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "athena_stage_execution_time_milliseconds",
			Help:        "Execution time of each stage.",
			ConstLabels: constLabels,
		}, []string{"stage_id"}),
	}

	m.registry.MustRegister(m.dataScanned, m.queryTime, m.queryRows, m.queryBytes, m.stageRows, m.stageTime)

	m.dataScanned.Set(float64(s.DataScannedBytes))

	m.queryTime.WithLabelValues("elapsed").Set(float64(s.ElapsedTimeMs))
	m.queryTime.WithLabelValues("queued").Set(float64(s.QueuedTimeMs))
	m.queryTime.WithLabelValues("planning").Set(float64(s.PlanningTimeMs))
	m.queryTime.WithLabelValues("execution").Set(float64(s.ExecutionTimeMs))
	m.queryTime.WithLabelValues("analysis").Set(float64(s.AnalysisTimeMs))
	m.queryTime.WithLabelValues("total").Set(float64(s.TotalExecutionTimeMs))

	m.queryRows.WithLabelValues("input").Set(float64(s.InputRows))
	m.queryRows.WithLabelValues("output").Set(float64(s.OutputRows))
	m.queryBytes.WithLabelValues("input").Set(float64(s.InputBytes))
	m.queryBytes.WithLabelValues("output").Set(float64(s.OutputBytes))

	if s.OutputStage != nil {
		s.OutputStage.Walk(func(st *stats.StageNode, _ int) bool {
			id := strconv.FormatInt(st.StageID, 10)
			m.stageRows.WithLabelValues(id, "input").Set(float64(st.InputRows))
			m.stageRows.WithLabelValues(id, "output").Set(float64(st.OutputRows))
			m.stageTime.WithLabelValues(id).Set(float64(st.ExecutionTimeMs))
			return true
		})
	}

	return m
}

// WriteTextfile writes the summary as gauges in the Prometheus text format,
// for pickup by the node_exporter textfile collector. The file is replaced
// atomically.
func WriteTextfile(path string, s *stats.ExecutionSummary) error {
	m := newTextfileMetrics(s)
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write textfile %s: %w", path, err)
	}
	return nil
}
