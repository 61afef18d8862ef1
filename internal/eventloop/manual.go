package eventloop

import (
	"sort"
	"time"
)

// Manual is a virtual-time Scheduler driven by Advance. It is not safe for
// concurrent use.
type Manual struct {
	now           time.Time
	frameInterval time.Duration
	seq           int
	queue         []*manualTask
}

// NewManual starts virtual time at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start, frameInterval: DefaultFrameInterval}
}

// SetFrameInterval changes the spacing used by NextFrame.
func (m *Manual) SetFrameInterval(d time.Duration) {
	if d > 0 {
		m.frameInterval = d
	}
}

// Now returns the virtual clock.
func (m *Manual) Now() time.Time {
	return m.now
}

// After schedules fn at Now()+d.
func (m *Manual) After(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	m.seq++
	task := &manualTask{at: m.now.Add(d), seq: m.seq, fn: fn}
	m.queue = append(m.queue, task)
	return task
}

// NextFrame schedules fn one frame interval from now.
func (m *Manual) NextFrame(fn func()) Timer {
	return m.After(m.frameInterval, fn)
}

// Offload runs work and then done on the calling goroutine.
func (m *Manual) Offload(work, done func()) {
	work()
	done()
}

// Advance moves the clock forward by d, running every task that falls due,
// including ones scheduled by tasks run during this call.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for {
		task := m.popDue(target)
		if task == nil {
			break
		}
		m.now = task.at
		task.fired = true
		task.fn()
	}
	m.now = target
}

// Pending reports how many live tasks are waiting.
func (m *Manual) Pending() int {
	n := 0
	for _, task := range m.queue {
		if !task.stopped && !task.fired {
			n++
		}
	}
	return n
}

func (m *Manual) popDue(target time.Time) *manualTask {
	live := m.queue[:0]
	for _, task := range m.queue {
		if !task.stopped && !task.fired {
			live = append(live, task)
		}
	}
	m.queue = live
	if len(m.queue) == 0 {
		return nil
	}
	sort.SliceStable(m.queue, func(i, j int) bool {
		if m.queue[i].at.Equal(m.queue[j].at) {
			return m.queue[i].seq < m.queue[j].seq
		}
		return m.queue[i].at.Before(m.queue[j].at)
	})
	next := m.queue[0]
	if next.at.After(target) {
		return nil
	}
	m.queue = m.queue[1:]
	return next
}

type manualTask struct {
	at      time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTask) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
