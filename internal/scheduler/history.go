package scheduler

import "time"

// durationRing keeps the most recent run durations of one task.
type durationRing struct {
	vals []time.Duration
	next int
	full bool
}

func newDurationRing(size int) *durationRing {
	return &durationRing{vals: make([]time.Duration, size)}
}

func (r *durationRing) add(d time.Duration) {
	r.vals[r.next] = d
	r.next = (r.next + 1) % len(r.vals)
	if r.next == 0 {
		r.full = true
	}
}

func (r *durationRing) values() []time.Duration {
	if r.full {
		return r.vals
	}
	return r.vals[:r.next]
}
