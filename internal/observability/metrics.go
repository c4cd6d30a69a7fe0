package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu              sync.Mutex
	requestCount    map[string]int64
	errorCount      map[string]int64
	alertCount      map[string]int64
	assignmentCount map[string]int64
	scans           int64
	scanFailures    int64
	lastScan        time.Time
	lastScanTook    time.Duration
}

// Snapshot is a copy of the counters safe to serialize.
type Snapshot struct {
	Requests     map[string]int64 `json:"requests"`
	Errors       map[string]int64 `json:"errors"`
	Alerts       map[string]int64 `json:"alerts"`
	Assignments  map[string]int64 `json:"assignments"`
	Scans        int64            `json:"scans"`
	ScanFailures int64            `json:"scan_failures"`
	LastScanAt   *time.Time       `json:"last_scan_at,omitempty"`
	LastScanMS   int64            `json:"last_scan_ms"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]int64),
		errorCount:      make(map[string]int64),
		alertCount:      make(map[string]int64),
		assignmentCount: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordScan tracks one completed SLA scan.
func (m *Metrics) RecordScan(at time.Time, took time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans++
	if failed {
		m.scanFailures++
	}
	m.lastScan = at
	m.lastScanTook = took
}

// RecordAlert counts an emitted alert by clock and status.
func (m *Metrics) RecordAlert(alertType, status string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alertCount[alertType+"|"+status]++
}

// RecordAssignment counts assignment outcomes (assigned, queued, failed).
func (m *Metrics) RecordAssignment(outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignmentCount[outcome]++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		Requests:     copyCounts(m.requestCount),
		Errors:       copyCounts(m.errorCount),
		Alerts:       copyCounts(m.alertCount),
		Assignments:  copyCounts(m.assignmentCount),
		Scans:        m.scans,
		ScanFailures: m.scanFailures,
		LastScanMS:   m.lastScanTook.Milliseconds(),
	}
	if !m.lastScan.IsZero() {
		at := m.lastScan
		snap.LastScanAt = &at
	}
	return snap
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
