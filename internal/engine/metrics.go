package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/zeusync/proxyfield/internal/core/events/bus"
)

// StageMetrics provides runtime metrics for one pipeline stage.
type StageMetrics struct {
	ExecutionCount       uint64
	TotalExecutionTime   time.Duration
	AverageExecutionTime time.Duration
	MaxExecutionTime     time.Duration
	MinExecutionTime     time.Duration
	ErrorCount           uint64
	LastError            error
	LastExecutionTime    time.Time
}

// Metrics aggregates stage timings and loop counters. It also observes the
// event bus to count published events per type.
type Metrics struct {
	mu     sync.Mutex
	stages map[string]*StageMetrics
	events map[string]uint64

	ticks    uint64
	notReady uint64
	failed   uint64
}

var _ bus.Observer = (*Metrics)(nil)

func NewMetrics() *Metrics {
	return &Metrics{
		stages: make(map[string]*StageMetrics),
		events: make(map[string]uint64),
	}
}

// Record adds one execution of stage.
func (m *Metrics) Record(stage string, d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stages[stage]
	if !ok {
		s = &StageMetrics{MinExecutionTime: d}
		m.stages[stage] = s
	}
	s.ExecutionCount++
	s.TotalExecutionTime += d
	s.AverageExecutionTime = s.TotalExecutionTime / time.Duration(s.ExecutionCount)
	s.MaxExecutionTime = max(s.MaxExecutionTime, d)
	s.MinExecutionTime = min(s.MinExecutionTime, d)
	s.LastExecutionTime = time.Now()
	if err != nil {
		s.ErrorCount++
		s.LastError = err
	}
}

func (m *Metrics) OnDelivered(eventType string, _ int, _ error, _ time.Duration) {
	m.mu.Lock()
	m.events[eventType]++
	m.mu.Unlock()
}

// Stage returns a copy of the metrics of one stage.
func (m *Metrics) Stage(name string) (StageMetrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stages[name]
	if !ok {
		return StageMetrics{}, false
	}
	return *s, true
}

// Stages lists the recorded stage names in sorted order.
func (m *Metrics) Stages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.stages))
	for name := range m.stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Metrics) Events(eventType string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[eventType]
}

// Counters returns processed ticks, ticks without a frame, and failed ticks.
func (m *Metrics) Counters() (ticks, notReady, failed uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticks, m.notReady, m.failed
}

func (m *Metrics) countTick(notReady, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case notReady:
		m.notReady++
	case failed:
		m.failed++
	default:
		m.ticks++
	}
}
