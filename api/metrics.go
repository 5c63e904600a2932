package api

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// RequestTrace is the timing of a single request
type RequestTrace struct {
	RequestID string        `json:"request_id"`
	Method    string        `json:"method"`
	Path      string        `json:"path"`
	Status    int           `json:"status"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
}

// RouteMetrics aggregates requests to one route
type RouteMetrics struct {
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	Count       int64         `json:"count"`
	ErrorCount  int64         `json:"error_count"`
	TotalTime   time.Duration `json:"total_time"`
	AvgTime     time.Duration `json:"avg_time"`
	MinTime     time.Duration `json:"min_time"`
	MaxTime     time.Duration `json:"max_time"`
	P95Time     time.Duration `json:"p95_time"`
	LastRequest time.Time     `json:"last_request"`

	recent []time.Duration
}

// MetricsSummary is the body of the metrics endpoint
type MetricsSummary struct {
	Since         time.Time       `json:"since"`
	TotalRequests int64           `json:"total_requests"`
	TotalErrors   int64           `json:"total_errors"`
	Routes        []*RouteMetrics `json:"routes"`
}

// recentWindow is how many durations per route feed the percentile
const recentWindow = 200

// MetricsCollector aggregates request traces off the request path.
// Traces are queued on a buffered channel and dropped when it is full.
type MetricsCollector struct {
	mu            sync.RWMutex
	routes        map[string]*RouteMetrics
	since         time.Time
	totalRequests int64
	totalErrors   int64

	traces chan RequestTrace
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewMetricsCollector starts a collector with a queue of size buffer
func NewMetricsCollector(buffer int) *MetricsCollector {
	mc := &MetricsCollector{
		routes: make(map[string]*RouteMetrics),
		since:  time.Now().UTC(),
		traces: make(chan RequestTrace, buffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go mc.processTraces()
	return mc
}

// Stop drains nothing further and ends the background worker
func (mc *MetricsCollector) Stop() {
	mc.once.Do(func() {
		close(mc.stop)
		<-mc.done
	})
}

// RecordTrace queues a trace without ever blocking
func (mc *MetricsCollector) RecordTrace(trace RequestTrace) {
	select {
	case mc.traces <- trace:
	default:
	}
}

func (mc *MetricsCollector) processTraces() {
	defer close(mc.done)
	for {
		select {
		case trace := <-mc.traces:
			mc.processTrace(trace)
		case <-mc.stop:
			return
		}
	}
}

func (mc *MetricsCollector) processTrace(trace RequestTrace) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	path := normalizeRoutePath(trace.Path)
	key := trace.Method + " " + path
	m, ok := mc.routes[key]
	if !ok {
		m = &RouteMetrics{Method: trace.Method, Path: path, MinTime: trace.Duration}
		mc.routes[key] = m
	}

	m.Count++
	m.TotalTime += trace.Duration
	m.AvgTime = m.TotalTime / time.Duration(m.Count)
	m.LastRequest = trace.StartTime
	if trace.Duration < m.MinTime {
		m.MinTime = trace.Duration
	}
	if trace.Duration > m.MaxTime {
		m.MaxTime = trace.Duration
	}
	if trace.Status >= 400 {
		m.ErrorCount++
		mc.totalErrors++
	}
	mc.totalRequests++

	m.recent = append(m.recent, trace.Duration)
	if len(m.recent) > recentWindow {
		m.recent = m.recent[1:]
	}
	m.P95Time = percentile(m.recent, 0.95)
}

func percentile(durations []time.Duration, p float64) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

// Summary returns a copy of the collected metrics, busiest routes first
func (mc *MetricsCollector) Summary() MetricsSummary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	routes := make([]*RouteMetrics, 0, len(mc.routes))
	for _, m := range mc.routes {
		c := *m
		c.recent = nil
		routes = append(routes, &c)
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Count != routes[j].Count {
			return routes[i].Count > routes[j].Count
		}
		return routes[i].Method+routes[i].Path < routes[j].Method+routes[j].Path
	})

	return MetricsSummary{
		Since:         mc.since,
		TotalRequests: mc.totalRequests,
		TotalErrors:   mc.totalErrors,
		Routes:        routes,
	}
}

var (
	uuidSegment   = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	objectSegment = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
)

// normalizeRoutePath folds id segments so one route aggregates as one key.
// Search terms are folded too.
//   - /api/v1/trial/6f1d8a52-.../transcript -> /api/v1/trial/{id}/transcript
//   - /api/v1/cases/search/fraud -> /api/v1/cases/search/{query}
func normalizeRoutePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		switch {
		case uuidSegment.MatchString(part), objectSegment.MatchString(part):
			parts[i] = "{id}"
		case i > 0 && parts[i-1] == "search" && part != "":
			parts[i] = "{query}"
		}
	}
	return strings.Join(parts, "/")
}
