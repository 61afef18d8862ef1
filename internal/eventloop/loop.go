// Package eventloop runs deferred work on a single goroutine so that quiz
// sessions and animations never observe concurrent mutation.
package eventloop

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultFrameInterval approximates a 60Hz display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

const taskBuffer = 256

// Timer is a handle to a scheduled continuation.
type Timer interface {
	// Stop cancels the continuation. It reports whether the call prevented
	// the continuation from running.
	Stop() bool
}

// Scheduler issues delayed and per-frame continuations.
type Scheduler interface {
	Now() time.Time
	After(d time.Duration, fn func()) Timer
	NextFrame(fn func()) Timer
	// Offload runs work off the scheduler's goroutine, then done back on it.
	Offload(work, done func())
}

// Loop dispatches every task on the goroutine that calls Run.
type Loop struct {
	tasks         chan func()
	done          chan struct{}
	closeOnce     sync.Once
	clock         clockwork.Clock
	frameInterval time.Duration
}

// New creates a loop whose frames are spaced by frameInterval.
func New(frameInterval time.Duration) *Loop {
	return NewWithClock(frameInterval, clockwork.NewRealClock())
}

// NewWithClock creates a loop whose timers run on clock.
func NewWithClock(frameInterval time.Duration, clock clockwork.Clock) *Loop {
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	return &Loop{
		tasks:         make(chan func(), taskBuffer),
		done:          make(chan struct{}),
		clock:         clock,
		frameInterval: frameInterval,
	}
}

// Run dispatches tasks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer l.closeOnce.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-l.tasks:
			task()
		}
	}
}

// Post enqueues fn. It is dropped when the loop has stopped.
func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// Now returns the loop's clock.
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// After runs fn on the loop once d has elapsed.
func (l *Loop) After(d time.Duration, fn func()) Timer {
	t := &loopTimer{fn: fn}
	t.mu.Lock()
	t.timer = l.clock.AfterFunc(d, func() { l.Post(t.run) })
	t.mu.Unlock()
	return t
}

// Offload runs work on its own goroutine and posts done to the loop.
func (l *Loop) Offload(work, done func()) {
	go func() {
		work()
		l.Post(done)
	}()
}

// NextFrame runs fn on the loop at the next display refresh.
func (l *Loop) NextFrame(fn func()) Timer {
	return l.After(l.frameInterval, fn)
}

type loopTimer struct {
	mu      sync.Mutex
	timer   clockwork.Timer
	fn      func()
	stopped bool
	fired   bool
}

func (t *loopTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.timer.Stop()
	return true
}

// run executes on the loop goroutine; a Stop that raced with the wake-up
// still wins because the flag is checked here.
func (t *loopTimer) run() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.mu.Unlock()
	t.fn()
}
