// Package metrics keeps process-local pipeline counters and renders them in
// the Prometheus text exposition format.
package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

type counter struct {
	name string
	help string
	v    atomic.Uint64
}

func newCounter(name, help string) *counter {
	c := &counter{name: name, help: help}
	registry = append(registry, c)
	return c
}

// labeledCounter counts per value of a single label.
type labeledCounter struct {
	name  string
	help  string
	label string
	mu    sync.Mutex
	byKey map[string]uint64
}

func (l *labeledCounter) inc(value string) {
	if value == "" {
		value = "unknown"
	}
	l.mu.Lock()
	l.byKey[value]++
	l.mu.Unlock()
}

func (l *labeledCounter) write(buf *bytes.Buffer) {
	l.mu.Lock()
	keys := make([]string, 0, len(l.byKey))
	for k := range l.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(buf, "# HELP %s %s\n# TYPE %s counter\n", l.name, l.help, l.name)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", l.name, l.label, k, l.byKey[k])
	}
	l.mu.Unlock()
}

var registry []*counter

var (
	jobsEnqueued     = newCounter("jobs_enqueued_total", "Jobs inserted by report creation or resubmission")
	jobsClaimed      = newCounter("jobs_claimed_total", "Jobs claimed by workers")
	jobsCompleted    = newCounter("jobs_completed_total", "Jobs that reached complete")
	jobsSwept        = newCounter("jobs_swept_total", "Jobs failed by the stale sweep")
	jobsAbandoned    = newCounter("jobs_abandoned_total", "Jobs dropped after leaving processing")
	claimErrors      = newCounter("job_claim_errors_total", "Claim attempts that hit a store error")
	lettersGenerated = newCounter("letters_generated_total", "Dispute letters persisted")
	lettersFailed    = newCounter("letters_failed_total", "Per-bureau letter failures")

	jobsFailed = &labeledCounter{
		name:  "jobs_failed_total",
		help:  "Jobs the worker marked failed, by stage",
		label: "stage",
		byKey: make(map[string]uint64),
	}

	jobDuration = newHistogram([]float64{500, 1000, 2500, 5000, 10000, 30000, 60000, 120000, 300000})
)

func IncJobsEnqueued()     { jobsEnqueued.v.Add(1) }
func IncJobsClaimed()      { jobsClaimed.v.Add(1) }
func IncJobsCompleted()    { jobsCompleted.v.Add(1) }
func IncJobsAbandoned()    { jobsAbandoned.v.Add(1) }
func IncClaimErrors()      { claimErrors.v.Add(1) }
func IncLettersGenerated() { lettersGenerated.v.Add(1) }
func IncLettersFailed()    { lettersFailed.v.Add(1) }

// IncJobsFailed counts a failed job under the progress stage it stopped at.
func IncJobsFailed(stage string) { jobsFailed.inc(stage) }

// AddJobsSwept counts jobs failed by one sweep pass.
func AddJobsSwept(n int64) {
	if n > 0 {
		jobsSwept.v.Add(uint64(n))
	}
}

// ObserveJobDurationMs records a completed job's processing time.
func ObserveJobDurationMs(value float64) {
	jobDuration.Observe(max(value, 0))
}

// Handler serves Render as text/plain.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

func Render() string {
	var buf bytes.Buffer
	for _, c := range registry {
		fmt.Fprintf(&buf, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", c.name, c.help, c.name, c.name, c.v.Load())
	}
	jobsFailed.write(&buf)
	jobDuration.write(&buf, "job_duration_ms", "Job processing duration in milliseconds")
	return buf.String()
}

type histogram struct {
	mu     sync.Mutex
	bounds []float64
	perBin []uint64
	sum    float64
	count  uint64
}

func newHistogram(bounds []float64) *histogram {
	return &histogram{bounds: bounds, perBin: make([]uint64, len(bounds))}
}

// Observe adds value to the first bin whose upper bound covers it. Values
// above every bound only reach +Inf.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	if i := sort.SearchFloat64s(h.bounds, value); i < len(h.bounds) {
		h.perBin[i]++
	}
}

// write emits cumulative buckets as the exposition format requires.
func (h *histogram) write(buf *bytes.Buffer, name, help string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(buf, "# HELP %s %s\n# TYPE %s histogram\n", name, help, name)
	var cumulative uint64
	for i, bound := range h.bounds {
		cumulative += h.perBin[i]
		fmt.Fprintf(buf, "%s_bucket{le=%q} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, h.count)
	fmt.Fprintf(buf, "%s_sum %s\n%s_count %d\n", name, formatFloat(h.sum), name, h.count)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
