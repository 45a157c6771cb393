package metrics

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestPrometheusExporterWriteMetrics(t *testing.T) {
	c := NewCollector(nil)
	c.RecordInsert(5*time.Millisecond, true)
	c.RecordDelete(1*time.Millisecond, true)
	c.RecordScan(4)

	exp := NewPrometheusExporter(c)
	var buf bytes.Buffer
	if err := exp.WriteMetrics(&buf); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"slotdb_inserts_total",
		"slotdb_deletes_total",
		"slotdb_scans_started_total",
		"slotdb_insert_duration_seconds_bucket",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestPrometheusExporterCustomNamespace(t *testing.T) {
	c := NewCollector(nil)
	exp := NewPrometheusExporter(c)
	exp.SetNamespace("mydb")

	var buf bytes.Buffer
	if err := exp.WriteMetrics(&buf); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	if !strings.Contains(buf.String(), "mydb_inserts_total") {
		t.Errorf("expected custom namespace prefix in output")
	}
}
