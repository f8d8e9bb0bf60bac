package loop

import (
	"sort"
	"time"
)

// Manual is a Scheduler driven by explicit calls to Advance. Callbacks run
// synchronously inside Advance, in due-time order, which makes gesture and
// cleanup timing reproducible in tests and sample replays.
type Manual struct {
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	m       *Manual
	at      time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

// NewManual returns a manual scheduler whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now implements Scheduler.
func (m *Manual) Now() time.Time { return m.now }

// Post implements Scheduler; the callback runs on the next Advance or Flush.
func (m *Manual) Post(fn func()) {
	m.AfterFunc(0, fn)
}

// AfterFunc implements Scheduler.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.seq++
	t := &manualTimer{m: m, at: m.now.Add(d), seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward by d, running every callback that falls due.
func (m *Manual) Advance(d time.Duration) {
	m.AdvanceTo(m.now.Add(d))
}

// AdvanceTo moves the clock to t, running every callback due at or before t.
// Callbacks scheduled by callbacks run too when they fall inside the window.
func (m *Manual) AdvanceTo(t time.Time) {
	for {
		next := m.nextDue(t)
		if next == nil {
			break
		}
		if next.at.After(m.now) {
			m.now = next.at
		}
		next.fired = true
		next.fn()
	}
	if t.After(m.now) {
		m.now = t
	}
}

// Flush runs callbacks that are already due without moving the clock.
func (m *Manual) Flush() {
	m.AdvanceTo(m.now)
}

// Pending returns the number of armed timers.
func (m *Manual) Pending() int {
	m.compact()
	return len(m.timers)
}

func (m *Manual) nextDue(limit time.Time) *manualTimer {
	m.compact()
	sort.SliceStable(m.timers, func(i, j int) bool {
		if !m.timers[i].at.Equal(m.timers[j].at) {
			return m.timers[i].at.Before(m.timers[j].at)
		}
		return m.timers[i].seq < m.timers[j].seq
	})
	if len(m.timers) == 0 || m.timers[0].at.After(limit) {
		return nil
	}
	return m.timers[0]
}

func (m *Manual) compact() {
	kept := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			kept = append(kept, t)
		}
	}
	m.timers = kept
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
