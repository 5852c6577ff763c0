package llm

import (
	"sync"
	"time"
)

const maxLatencySamples = 100

// MetricsCollector collects metrics for completion and transcription calls.
// Keys are "<operation>:<backend>".
type MetricsCollector struct {
	requests  map[string]int64
	errors    map[string]int64
	retries   map[string]int64
	tokens    map[string]int64
	latencies map[string][]time.Duration
	mu        sync.RWMutex
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requests:  make(map[string]int64),
		errors:    make(map[string]int64),
		retries:   make(map[string]int64),
		tokens:    make(map[string]int64),
		latencies: make(map[string][]time.Duration),
	}
}

// RecordRequest records one logical call including its retries.
func (mc *MetricsCollector) RecordRequest(operation, backend string, success bool, latency time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := operation + ":" + backend
	mc.requests[key]++
	if !success {
		mc.errors[key]++
	}

	mc.latencies[key] = append(mc.latencies[key], latency)
	if len(mc.latencies[key]) > maxLatencySamples {
		mc.latencies[key] = mc.latencies[key][1:]
	}
}

// RecordRetry records a retried attempt.
func (mc *MetricsCollector) RecordRetry(operation, backend string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.retries[operation+":"+backend]++
}

// RecordUsage records token usage per model.
func (mc *MetricsCollector) RecordUsage(model string, usage Usage) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.tokens[model] += int64(usage.TotalTokens)
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	Requests     map[string]int64   `json:"requests"`
	Errors       map[string]int64   `json:"errors"`
	Retries      map[string]int64   `json:"retries"`
	Tokens       map[string]int64   `json:"tokens"`
	AvgLatencyMs map[string]float64 `json:"avg_latency_ms"`
	Breakers     map[string]string  `json:"circuit_breakers,omitempty"`
}

// GetSnapshot returns a snapshot of current metrics
func (mc *MetricsCollector) GetSnapshot() Snapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snapshot := Snapshot{
		Requests:     copyCounts(mc.requests),
		Errors:       copyCounts(mc.errors),
		Retries:      copyCounts(mc.retries),
		Tokens:       copyCounts(mc.tokens),
		AvgLatencyMs: make(map[string]float64, len(mc.latencies)),
	}

	for k, latencies := range mc.latencies {
		if len(latencies) == 0 {
			continue
		}
		var total time.Duration
		for _, l := range latencies {
			total += l
		}
		snapshot.AvgLatencyMs[k] = float64(total.Milliseconds()) / float64(len(latencies))
	}

	return snapshot
}

// Reset resets all metrics
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.requests = make(map[string]int64)
	mc.errors = make(map[string]int64)
	mc.retries = make(map[string]int64)
	mc.tokens = make(map[string]int64)
	mc.latencies = make(map[string][]time.Duration)
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
