package perf

import (
	"sync"
	"time"
)

const DefaultCapacity = 1000

type Measurement struct {
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Monitor keeps the most recent measurements in a fixed-size ring.
type Monitor struct {
	mu   sync.RWMutex
	buf  []Measurement
	next int
	size int
	now  func() time.Time
}

func NewMonitor(capacity int) *Monitor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Monitor{buf: make([]Measurement, capacity), now: time.Now}
}

// WithClock replaces the clock used to stamp measurements.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

func (m *Monitor) Record(name string, value float64) {
	m.RecordAt(name, value, m.now())
}

func (m *Monitor) RecordAt(name string, value float64, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf[m.next] = Measurement{Name: name, Value: value, Timestamp: at}
	m.next = (m.next + 1) % len(m.buf)
	if m.size < len(m.buf) {
		m.size++
	}
}

func (m *Monitor) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// Recent returns up to n measurements, oldest first. n <= 0 returns all.
func (m *Monitor) Recent(n int) []Measurement {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.orderedLocked()
	if n > 0 && n < len(all) {
		return all[len(all)-n:]
	}
	return all
}

// ClearOlderThan drops measurements older than the given number of hours
// and returns how many were removed.
func (m *Monitor) ClearOlderThan(hours int) int {
	cutoff := m.now().Add(-time.Duration(hours) * time.Hour)

	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.orderedLocked()
	kept := all[:0]
	for _, ms := range all {
		if !ms.Timestamp.Before(cutoff) {
			kept = append(kept, ms)
		}
	}
	removed := len(all) - len(kept)

	buf := make([]Measurement, len(m.buf))
	copy(buf, kept)
	m.buf = buf
	m.size = len(kept)
	m.next = len(kept) % len(buf)
	return removed
}

func (m *Monitor) orderedLocked() []Measurement {
	out := make([]Measurement, 0, m.size)
	start := 0
	if m.size == len(m.buf) {
		start = m.next
	}
	for i := 0; i < m.size; i++ {
		out = append(out, m.buf[(start+i)%len(m.buf)])
	}
	return out
}
