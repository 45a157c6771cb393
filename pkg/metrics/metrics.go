// Package metrics collects and exposes runtime statistics for an open
// table, adapted from the engine's request/transaction metrics collector
// down to the buffer-pool and record-manager counters this engine
// actually has (buffer-pool capacity and I/O counts, tuple count, CRUD
// operation counts and timings, scan counts).
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"slotdb/pkg/record"
)

// Collector tracks CRUD operation counts/timings and samples a Table's
// buffer-pool counters on demand.
type Collector struct {
	table *record.Table

	insertsExecuted uint64
	insertsFailed   uint64
	totalInsertTime uint64 // nanoseconds

	deletesExecuted uint64
	deletesFailed   uint64
	totalDeleteTime uint64

	updatesExecuted uint64
	updatesFailed   uint64
	totalUpdateTime uint64

	scansStarted uint64
	scansTuples  uint64

	mu            sync.Mutex
	insertTimings *TimingHistogram
	deleteTimings *TimingHistogram
	updateTimings *TimingHistogram

	startTime time.Time
}

// TimingHistogram buckets durations into <1ms, 1-10ms, 10-100ms,
// 100ms-1s, and >1s, plus a bounded window of recent samples for
// percentile estimates.
type TimingHistogram struct {
	bucket0_1ms      uint64
	bucket1_10ms     uint64
	bucket10_100ms   uint64
	bucket100_1000ms uint64
	bucket1000ms     uint64

	mu               sync.Mutex
	recentTimings    []time.Duration
	maxRecentTimings int
}

// NewCollector creates a Collector that samples t's buffer-pool counters.
// t may be nil; the tuple-count and buffer-pool entries are then left
// out of Snapshot and of the Prometheus output.
func NewCollector(t *record.Table) *Collector {
	return &Collector{
		table:         t,
		insertTimings: NewTimingHistogram(1000),
		deleteTimings: NewTimingHistogram(1000),
		updateTimings: NewTimingHistogram(1000),
		startTime:     time.Now(),
	}
}

func NewTimingHistogram(maxRecent int) *TimingHistogram {
	return &TimingHistogram{
		recentTimings:    make([]time.Duration, 0, maxRecent),
		maxRecentTimings: maxRecent,
	}
}

func (c *Collector) RecordInsert(d time.Duration, success bool) {
	atomic.AddUint64(&c.insertsExecuted, 1)
	if !success {
		atomic.AddUint64(&c.insertsFailed, 1)
	}
	atomic.AddUint64(&c.totalInsertTime, uint64(d.Nanoseconds()))
	c.insertTimings.Record(d)
}

func (c *Collector) RecordDelete(d time.Duration, success bool) {
	atomic.AddUint64(&c.deletesExecuted, 1)
	if !success {
		atomic.AddUint64(&c.deletesFailed, 1)
	}
	atomic.AddUint64(&c.totalDeleteTime, uint64(d.Nanoseconds()))
	c.deleteTimings.Record(d)
}

func (c *Collector) RecordUpdate(d time.Duration, success bool) {
	atomic.AddUint64(&c.updatesExecuted, 1)
	if !success {
		atomic.AddUint64(&c.updatesFailed, 1)
	}
	atomic.AddUint64(&c.totalUpdateTime, uint64(d.Nanoseconds()))
	c.updateTimings.Record(d)
}

// Observe dispatches one completed CRUD operation to the matching
// Record* method by name, for wiring directly into record.Table's
// SetOpListener hook.
func (c *Collector) Observe(op string, d time.Duration, success bool) {
	switch op {
	case "insert":
		c.RecordInsert(d, success)
	case "delete":
		c.RecordDelete(d, success)
	case "update":
		c.RecordUpdate(d, success)
	}
}

func (c *Collector) RecordScan(tuplesVisited int) {
	atomic.AddUint64(&c.scansStarted, 1)
	atomic.AddUint64(&c.scansTuples, uint64(tuplesVisited))
}

func (th *TimingHistogram) Record(d time.Duration) {
	ms := d.Milliseconds()
	switch {
	case ms < 1:
		atomic.AddUint64(&th.bucket0_1ms, 1)
	case ms < 10:
		atomic.AddUint64(&th.bucket1_10ms, 1)
	case ms < 100:
		atomic.AddUint64(&th.bucket10_100ms, 1)
	case ms < 1000:
		atomic.AddUint64(&th.bucket100_1000ms, 1)
	default:
		atomic.AddUint64(&th.bucket1000ms, 1)
	}

	th.mu.Lock()
	defer th.mu.Unlock()
	if len(th.recentTimings) >= th.maxRecentTimings {
		th.recentTimings = th.recentTimings[1:]
	}
	th.recentTimings = append(th.recentTimings, d)
}

func (th *TimingHistogram) GetBuckets() map[string]uint64 {
	return map[string]uint64{
		"0-1ms":      atomic.LoadUint64(&th.bucket0_1ms),
		"1-10ms":     atomic.LoadUint64(&th.bucket1_10ms),
		"10-100ms":   atomic.LoadUint64(&th.bucket10_100ms),
		"100-1000ms": atomic.LoadUint64(&th.bucket100_1000ms),
		">1000ms":    atomic.LoadUint64(&th.bucket1000ms),
	}
}

func (th *TimingHistogram) GetPercentiles() map[string]time.Duration {
	th.mu.Lock()
	defer th.mu.Unlock()

	if len(th.recentTimings) == 0 {
		return map[string]time.Duration{"p50": 0, "p95": 0, "p99": 0}
	}

	sorted := make([]time.Duration, len(th.recentTimings))
	copy(sorted, th.recentTimings)
	for i := 1; i < len(sorted); i++ {
		key := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > key {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = key
	}

	return map[string]time.Duration{
		"p50": sorted[len(sorted)*50/100],
		"p95": sorted[len(sorted)*95/100],
		"p99": sorted[len(sorted)*99/100],
	}
}

// Snapshot returns the collector's counters plus the table's current
// buffer-pool gauges.
func (c *Collector) Snapshot() map[string]interface{} {
	out := map[string]interface{}{
		"uptime_seconds": time.Since(c.startTime).Seconds(),
		"inserts":        c.opSnapshot(&c.insertsExecuted, &c.insertsFailed, &c.totalInsertTime, c.insertTimings),
		"deletes":        c.opSnapshot(&c.deletesExecuted, &c.deletesFailed, &c.totalDeleteTime, c.deleteTimings),
		"updates":        c.opSnapshot(&c.updatesExecuted, &c.updatesFailed, &c.totalUpdateTime, c.updateTimings),
		"scans": map[string]interface{}{
			"started":        atomic.LoadUint64(&c.scansStarted),
			"tuples_visited": atomic.LoadUint64(&c.scansTuples),
		},
	}
	if c.table != nil {
		out["tuple_count"] = c.table.NumTuples()
		cap, reads, writes := c.table.PoolStats()
		out["buffer_pool"] = map[string]interface{}{
			"capacity": cap,
			"read_io":  reads,
			"write_io": writes,
		}
	}
	return out
}

func (c *Collector) opSnapshot(executed, failed, totalTime *uint64, th *TimingHistogram) map[string]interface{} {
	ex := atomic.LoadUint64(executed)
	fl := atomic.LoadUint64(failed)
	tt := atomic.LoadUint64(totalTime)

	var avgMs float64
	if ex > 0 {
		avgMs = float64(tt) / float64(ex) / 1e6
	}

	return map[string]interface{}{
		"total":              ex,
		"failed":             fl,
		"success_rate":       successRate(ex, fl),
		"avg_duration_ms":    avgMs,
		"timing_histogram":   th.GetBuckets(),
		"timing_percentiles": th.GetPercentiles(),
	}
}

func successRate(total, failed uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(total-failed) / float64(total) * 100
}
