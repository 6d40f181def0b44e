package metrics

import (
	"slices"
	"sync"
	"time"
)

// Metric names recorded by the chat core
const (
	MetricCompletionLatency = "completion_latency"
	MetricMessageSent       = "message_sent"
	MetricReplyReceived     = "reply_received"
	MetricProviderFailure   = "provider_failure"
	MetricSecondaryFailure  = "secondary_failure"
	MetricEventDropped      = "event_dropped"
)

// latencyWindow is how many completion latencies feed the percentiles
const latencyWindow = 20

// Metric represents a single metric measurement
type Metric struct {
	Name      string            `json:"name"`
	Value     int64             `json:"value"`
	Timestamp time.Time         `json:"timestamp"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Snapshot contains aggregated counters and completion latency statistics
type Snapshot struct {
	AvgLatencyMS      int64     `json:"avg_latency_ms"`
	P95LatencyMS      int64     `json:"p95_latency_ms"`
	P99LatencyMS      int64     `json:"p99_latency_ms"`
	RecentLatencies   []int64   `json:"recent_latencies_ms"`
	MessagesSent      int64     `json:"messages_sent"`
	RepliesReceived   int64     `json:"replies_received"`
	ProviderFailures  int64     `json:"provider_failures"`
	SecondaryFailures int64     `json:"secondary_failures"`
	EventsDropped     int64     `json:"events_dropped"`
	Timestamp         time.Time `json:"timestamp"`
}

// Collector aggregates and provides access to chat metrics
type Collector struct {
	mu         sync.RWMutex
	metrics    []Metric
	maxMetrics int
	stats      Snapshot
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		metrics:    make([]Metric, 0, 1000),
		maxMetrics: 1000,
		stats: Snapshot{
			RecentLatencies: make([]int64, 0, latencyWindow),
			Timestamp:       time.Now(),
		},
	}
}

// Record adds a new metric measurement
func (c *Collector) Record(metric Metric) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	metric.Timestamp = time.Now()
	c.metrics = append(c.metrics, metric)
	if len(c.metrics) > c.maxMetrics {
		c.metrics = c.metrics[len(c.metrics)-c.maxMetrics:]
	}

	c.update(metric)
}

// RecordCompletionLatency records how long a provider call took
func (c *Collector) RecordCompletionLatency(d time.Duration, model string) {
	c.Record(Metric{
		Name:  MetricCompletionLatency,
		Value: d.Milliseconds(),
		Tags:  map[string]string{"model": model},
	})
}

// RecordMessageSent counts a user message handed to a provider
func (c *Collector) RecordMessageSent() {
	c.Record(Metric{Name: MetricMessageSent, Value: 1})
}

// RecordReplyReceived counts an assistant reply appended to history
func (c *Collector) RecordReplyReceived() {
	c.Record(Metric{Name: MetricReplyReceived, Value: 1})
}

// RecordProviderFailure counts a failed completion call
func (c *Collector) RecordProviderFailure(model string) {
	c.Record(Metric{
		Name:  MetricProviderFailure,
		Value: 1,
		Tags:  map[string]string{"model": model},
	})
}

// RecordSecondaryFailure counts a failed secondary store put or delete
func (c *Collector) RecordSecondaryFailure(op string) {
	c.Record(Metric{
		Name:  MetricSecondaryFailure,
		Value: 1,
		Tags:  map[string]string{"op": op},
	})
}

// RecordEventDropped counts a change event that could not be published
func (c *Collector) RecordEventDropped() {
	c.Record(Metric{Name: MetricEventDropped, Value: 1})
}

// Snapshot returns a copy of the current aggregates
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.stats
	s.RecentLatencies = slices.Clone(c.stats.RecentLatencies)
	return s
}

// Metrics returns up to limit recent metrics, optionally filtered by name, oldest first
func (c *Collector) Metrics(name string, limit int) []Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var filtered []Metric
	for i := len(c.metrics) - 1; i >= 0 && len(filtered) < limit; i-- {
		if name == "" || c.metrics[i].Name == name {
			filtered = append(filtered, c.metrics[i])
		}
	}
	slices.Reverse(filtered)
	return filtered
}

func (c *Collector) update(metric Metric) {
	switch metric.Name {
	case MetricCompletionLatency:
		c.stats.RecentLatencies = append(c.stats.RecentLatencies, metric.Value)
		if len(c.stats.RecentLatencies) > latencyWindow {
			c.stats.RecentLatencies = c.stats.RecentLatencies[1:]
		}
		c.calculateLatencyStats()
	case MetricMessageSent:
		c.stats.MessagesSent++
	case MetricReplyReceived:
		c.stats.RepliesReceived++
	case MetricProviderFailure:
		c.stats.ProviderFailures++
	case MetricSecondaryFailure:
		c.stats.SecondaryFailures++
	case MetricEventDropped:
		c.stats.EventsDropped++
	}
	c.stats.Timestamp = time.Now()
}

func (c *Collector) calculateLatencyStats() {
	times := c.stats.RecentLatencies
	if len(times) == 0 {
		return
	}

	sorted := slices.Clone(times)
	slices.Sort(sorted)

	var sum int64
	for _, t := range times {
		sum += t
	}
	c.stats.AvgLatencyMS = sum / int64(len(times))

	n := len(sorted)
	c.stats.P95LatencyMS = sorted[min(n-1, int(float64(n)*0.95))]
	c.stats.P99LatencyMS = sorted[min(n-1, int(float64(n)*0.99))]
}

// Reset clears all collected metrics
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics = make([]Metric, 0, c.maxMetrics)
	c.stats = Snapshot{
		RecentLatencies: make([]int64, 0, latencyWindow),
		Timestamp:       time.Now(),
	}
}
