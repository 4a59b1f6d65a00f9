// Package metrics counts auth and relation events in process memory.
package metrics

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Recorder increments counters for named events.
type Recorder interface {
	Increment(event string)
}

// Nop discards every event.
type Nop struct{}

// Increment does nothing.
func (Nop) Increment(string) {}

// CounterMetrics implements Recorder with in-memory counts.
type CounterMetrics struct {
	mutex  sync.Mutex
	counts map[string]int64
}

// NewCounterMetrics constructs an in-memory metrics recorder.
func NewCounterMetrics() *CounterMetrics {
	return &CounterMetrics{counts: make(map[string]int64)}
}

// Increment increases the counter for the given event.
func (recorder *CounterMetrics) Increment(event string) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.counts[event]++
}

// Count returns the current value for the given event.
func (recorder *CounterMetrics) Count(event string) int64 {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return recorder.counts[event]
}

// Snapshot returns a copy of all recorded counters.
func (recorder *CounterMetrics) Snapshot() map[string]int64 {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	clone := make(map[string]int64, len(recorder.counts))
	for key, value := range recorder.counts {
		clone[key] = value
	}
	return clone
}

// Log writes the current counters as one structured entry, keys sorted.
func (recorder *CounterMetrics) Log(logger *zap.Logger) {
	snapshot := recorder.Snapshot()
	events := make([]string, 0, len(snapshot))
	for event := range snapshot {
		events = append(events, event)
	}
	sort.Strings(events)
	fields := make([]zap.Field, 0, len(events)+1)
	fields = append(fields, zap.String("code", "metrics.snapshot"))
	for _, event := range events {
		fields = append(fields, zap.Int64(event, snapshot[event]))
	}
	logger.Info("event counters", fields...)
}
