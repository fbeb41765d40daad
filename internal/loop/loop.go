// Package loop runs all document work on one goroutine. Network goroutines
// post events to it, and visual updates are batched into frames.
package loop

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultFrameInterval approximates one display refresh
const DefaultFrameInterval = 16 * time.Millisecond

// Loop is a single-threaded task queue with a frame callback queue.
// Post and RequestFrame are safe from any goroutine. Tasks and frame
// callbacks never run concurrently with each other.
type Loop struct {
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	tasks  []func()
	frames []func()
	wake   chan struct{}

	// run serializes Drain and Run ticks
	run sync.Mutex
}

// New creates a loop painting every interval
func New(interval time.Duration, logger *zap.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		interval: interval,
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
}

// Interval returns the frame interval
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// Post queues fn to run on the loop
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	l.signal()
}

// RequestFrame queues fn for the next frame. Callbacks requested while a
// frame is running land in the following frame.
func (l *Loop) RequestFrame(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.frames = append(l.frames, fn)
	l.mu.Unlock()
}

// Pending reports queued tasks and frame callbacks
func (l *Loop) Pending() (tasks, frames int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks), len(l.frames)
}

// Frame runs the frame callbacks queued so far
func (l *Loop) Frame() {
	l.run.Lock()
	defer l.run.Unlock()
	l.frame()
}

// Drain runs tasks and frames until both queues are empty. Intended for
// tests and for shutdown.
func (l *Loop) Drain() {
	l.run.Lock()
	defer l.run.Unlock()
	for {
		ran := l.tasksOnce()
		ran = l.frame() || ran
		if !ran {
			return
		}
	}
}

// Run processes tasks as they arrive and paints frames on a ticker until
// ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
			l.run.Lock()
			l.tasksOnce()
			l.run.Unlock()
		case <-ticker.C:
			l.run.Lock()
			l.tasksOnce()
			l.frame()
			l.run.Unlock()
		}
	}
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// tasksOnce runs queued tasks, including ones posted while running.
func (l *Loop) tasksOnce() bool {
	ran := false
	for {
		l.mu.Lock()
		batch := l.tasks
		l.tasks = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return ran
		}
		ran = true
		for _, fn := range batch {
			l.safe("task", fn)
		}
	}
}

func (l *Loop) frame() bool {
	l.mu.Lock()
	batch := l.frames
	l.frames = nil
	l.mu.Unlock()

	for _, fn := range batch {
		l.safe("frame", fn)
	}
	return len(batch) > 0
}

func (l *Loop) safe(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop callback panicked", zap.String("kind", kind), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}
