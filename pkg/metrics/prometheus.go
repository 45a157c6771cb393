package metrics

import (
	"fmt"
	"io"
	"sync/atomic"
)

// PrometheusExporter renders a Collector's counters in Prometheus text
// exposition format.
type PrometheusExporter struct {
	collector *Collector
	namespace string
}

// NewPrometheusExporter creates an exporter for collector under the
// "slotdb" metric namespace.
func NewPrometheusExporter(collector *Collector) *PrometheusExporter {
	return &PrometheusExporter{collector: collector, namespace: "slotdb"}
}

// SetNamespace overrides the metric name prefix.
func (pe *PrometheusExporter) SetNamespace(namespace string) {
	pe.namespace = namespace
}

// WriteMetrics writes every counter, gauge, and histogram to w.
func (pe *PrometheusExporter) WriteMetrics(w io.Writer) error {
	c := pe.collector

	if err := pe.writeOp(w, "insert", &c.insertsExecuted, &c.insertsFailed, &c.totalInsertTime, c.insertTimings); err != nil {
		return err
	}
	if err := pe.writeOp(w, "delete", &c.deletesExecuted, &c.deletesFailed, &c.totalDeleteTime, c.deleteTimings); err != nil {
		return err
	}
	if err := pe.writeOp(w, "update", &c.updatesExecuted, &c.updatesFailed, &c.totalUpdateTime, c.updateTimings); err != nil {
		return err
	}

	if err := pe.writeCounter(w, "scans_started_total", "Total number of scans started", atomic.LoadUint64(&c.scansStarted)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "scans_tuples_visited_total", "Total number of tuples visited by scans", atomic.LoadUint64(&c.scansTuples)); err != nil {
		return err
	}

	if c.table != nil {
		if err := pe.writeGauge(w, "tuple_count", "Current number of live tuples", float64(c.table.NumTuples())); err != nil {
			return err
		}
		capacity, reads, writes := c.table.PoolStats()
		if err := pe.writeGauge(w, "buffer_pool_capacity", "Buffer pool frame capacity", float64(capacity)); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "buffer_pool_read_io_total", "Total pages read from disk", uint64(reads)); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "buffer_pool_write_io_total", "Total pages written to disk", uint64(writes)); err != nil {
			return err
		}
	}

	return nil
}

func (pe *PrometheusExporter) writeOp(w io.Writer, op string, executed, failed, totalTime *uint64, th *TimingHistogram) error {
	ex := atomic.LoadUint64(executed)
	fl := atomic.LoadUint64(failed)
	tt := atomic.LoadUint64(totalTime)

	if err := pe.writeCounter(w, op+"s_total", "Total number of "+op+" operations", ex); err != nil {
		return err
	}
	if err := pe.writeCounter(w, op+"s_failed_total", "Total number of failed "+op+" operations", fl); err != nil {
		return err
	}
	if err := pe.writeCounter(w, op+"_duration_nanoseconds_total", "Total "+op+" execution time in nanoseconds", tt); err != nil {
		return err
	}
	if err := pe.writeHistogram(w, op+"_duration_seconds", op+" duration histogram", th); err != nil {
		return err
	}
	return pe.writePercentiles(w, op+"_duration_seconds", th)
}

func (pe *PrometheusExporter) writeCounter(w io.Writer, name, help string, value uint64) error {
	metricName := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", metricName, help, metricName, metricName, value)
	return err
}

func (pe *PrometheusExporter) writeGauge(w io.Writer, name, help string, value float64) error {
	metricName := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n", metricName, help, metricName, metricName, value)
	return err
}

func (pe *PrometheusExporter) writeHistogram(w io.Writer, name, help string, th *TimingHistogram) error {
	metricName := pe.namespace + "_" + name
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", metricName, help, metricName); err != nil {
		return err
	}

	buckets := th.GetBuckets()
	var cumulative uint64
	for _, pair := range []struct {
		key, le string
	}{
		{"0-1ms", "0.001"},
		{"1-10ms", "0.01"},
		{"10-100ms", "0.1"},
		{"100-1000ms", "1.0"},
		{">1000ms", "+Inf"},
	} {
		cumulative += buckets[pair.key]
		if _, err := fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", metricName, pair.le, cumulative); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s_count %d\n", metricName, cumulative)
	return err
}

func (pe *PrometheusExporter) writePercentiles(w io.Writer, baseName string, th *TimingHistogram) error {
	p := th.GetPercentiles()
	for _, name := range []string{"p50", "p95", "p99"} {
		if err := pe.writeGauge(w, baseName+"_"+name, fmt.Sprintf("%s percentile of %s", name, baseName), p[name].Seconds()); err != nil {
			return err
		}
	}
	return nil
}
