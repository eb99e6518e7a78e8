// Package clock schedules the callbacks that drive quiz timers.
//
// Production code uses Real. Tests use Manual, which only moves when Advance is called.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Scheduler runs callbacks after a delay or on a fixed period.
// The returned stop func is safe to call more than once. A callback may still run once
// after stop returns, so callers must guard against late invocations.
type Scheduler interface {
	Every(d time.Duration, fn func()) (stop func())
	After(d time.Duration, fn func()) (stop func())
}

// Real is backed by time.Ticker and time.AfterFunc.
type Real struct{}

func (Real) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func (Real) After(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Manual is a virtual-time Scheduler.
type Manual struct {
	mu     sync.Mutex
	now    time.Duration
	nextID int
	timers map[int]*manualTimer
}

type manualTimer struct {
	id     int
	at     time.Duration
	period time.Duration
	fn     func()
}

func NewManual() *Manual {
	return &Manual{timers: make(map[int]*manualTimer)}
}

func (m *Manual) Every(d time.Duration, fn func()) func() {
	return m.add(d, d, fn)
}

func (m *Manual) After(d time.Duration, fn func()) func() {
	return m.add(d, 0, fn)
}

func (m *Manual) add(d, period time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.timers[id] = &manualTimer{id: id, at: m.now + d, period: period, fn: fn}
	return func() {
		m.mu.Lock()
		delete(m.timers, id)
		m.mu.Unlock()
	}
}

// Advance moves virtual time forward by d, firing due callbacks in time order.
// Callbacks run without the scheduler lock held and may schedule or stop timers.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDueLocked(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.at
		if next.period > 0 {
			next.at += next.period
		} else {
			delete(m.timers, next.id)
		}
		fn := next.fn
		m.mu.Unlock()
		fn()
	}
}

func (m *Manual) nextDueLocked(target time.Duration) *manualTimer {
	due := make([]*manualTimer, 0, len(m.timers))
	for _, t := range m.timers {
		if t.at <= target {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].id < due[j].id
	})
	return due[0]
}

// Pending reports how many timers are scheduled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// PendingPeriodic reports how many repeating timers are scheduled.
func (m *Manual) PendingPeriodic() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if t.period > 0 {
			n++
		}
	}
	return n
}
