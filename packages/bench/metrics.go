package bench

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/perchrh/ackhttp/packages/http"
)

const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Metrics collects outcomes from concurrent callbacks.
type Metrics struct {
	mu sync.Mutex

	total           atomic.Int64
	success         atomic.Int64
	nonSuccess      atomic.Int64
	transportErrors atomic.Int64

	statusCounts map[int]int64

	// Latency histogram (in microseconds for precision)
	histogram *hdrhistogram.Histogram

	startTime time.Time
	endTime   time.Time
}

// NewMetrics creates a new Metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		// Histogram: 1us to 60s range, 3 significant digits
		histogram:    hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		statusCounts: make(map[int]int64),
	}
}

// Start marks the beginning of the run
func (m *Metrics) Start() {
	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}

// Stop marks the end of the run
func (m *Metrics) Stop() {
	m.mu.Lock()
	m.endTime = time.Now()
	m.mu.Unlock()
}

// Record adds one outcome. Safe for concurrent use.
func (m *Metrics) Record(o http.Outcome) {
	m.total.Add(1)
	switch o.Kind() {
	case http.KindNone:
		m.success.Add(1)
	case http.KindNonSuccessStatus:
		m.nonSuccess.Add(1)
	default:
		m.transportErrors.Add(1)
	}

	latencyUs := o.Duration.Microseconds()
	if latencyUs < minLatencyUs {
		latencyUs = minLatencyUs
	}
	if latencyUs > maxLatencyUs {
		latencyUs = maxLatencyUs
	}

	m.mu.Lock()
	_ = m.histogram.RecordValue(latencyUs)
	if o.StatusCode != 0 {
		m.statusCounts[o.StatusCode]++
	}
	m.mu.Unlock()
}

// Summary is the final report of a run.
type Summary struct {
	Duration        time.Duration
	Total           int64
	Success         int64
	NonSuccess      int64
	TransportErrors int64
	StatusCounts    map[int]int64

	RPS         float64
	SuccessRate float64

	Min  time.Duration
	Mean time.Duration
	P50  time.Duration
	P95  time.Duration
	P99  time.Duration
	Max  time.Duration
}

// Failed reports whether any request did not succeed.
func (s *Summary) Failed() bool {
	return s.Success != s.Total
}

// Summary returns the metrics summary
func (m *Metrics) Summary() *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	duration := m.endTime.Sub(m.startTime)
	if m.endTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	total := m.total.Load()
	success := m.success.Load()

	rps := float64(0)
	if duration.Seconds() > 0 {
		rps = float64(total) / duration.Seconds()
	}
	successRate := float64(0)
	if total > 0 {
		successRate = float64(success) / float64(total)
	}

	statuses := make(map[int]int64, len(m.statusCounts))
	for k, v := range m.statusCounts {
		statuses[k] = v
	}

	return &Summary{
		Duration:        duration,
		Total:           total,
		Success:         success,
		NonSuccess:      m.nonSuccess.Load(),
		TransportErrors: m.transportErrors.Load(),
		StatusCounts:    statuses,
		RPS:             rps,
		SuccessRate:     successRate,
		Min:             usToDuration(m.histogram.Min()),
		Mean:            time.Duration(m.histogram.Mean() * float64(time.Microsecond)),
		P50:             usToDuration(m.histogram.ValueAtQuantile(50)),
		P95:             usToDuration(m.histogram.ValueAtQuantile(95)),
		P99:             usToDuration(m.histogram.ValueAtQuantile(99)),
		Max:             usToDuration(m.histogram.Max()),
	}
}

func usToDuration(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}
