// Package uiloop runs work on one logical UI thread.
//
// Everything that touches widget state executes as a task on the loop:
// click handlers, inbound messages, timer callbacks and frame callbacks.
// Network work runs elsewhere and posts its result back. Posting never
// blocks, so it is safe from browser event callbacks.
package uiloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultFrameInterval approximates a 60 Hz display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

// ErrRunning is returned when Run is called on a loop that already runs.
var ErrRunning = errors.New("uiloop: already running")

// ErrStopped is returned by Call when the loop exits before the task runs.
var ErrStopped = errors.New("uiloop: stopped")

// Loop is a serial task executor with timers and frame callbacks.
type Loop struct {
	frameInterval time.Duration
	logger        *slog.Logger

	mu      sync.Mutex
	queue   []func()
	frames  []func()
	running bool
	stopped bool

	wake chan struct{}
	done chan struct{}
}

// Option configures a Loop.
type Option func(*Loop)

// WithFrameInterval sets the frame tick. Default: DefaultFrameInterval.
func WithFrameInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.frameInterval = d
		}
	}
}

// WithLogger sets the logger used for task panics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// New creates a Loop. Call Run to start executing tasks.
func New(opts ...Option) *Loop {
	l := &Loop{
		frameInterval: DefaultFrameInterval,
		logger:        slog.Default(),
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Post queues fn to run on the loop. It returns false once the loop has
// stopped; the task is then dropped.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// After runs fn on the loop once d has elapsed. The returned timer may be
// stopped; a fired timer whose task reaches a stopped loop is dropped.
func (l *Loop) After(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() { l.Post(fn) })
}

// NextFrame runs fn on the next frame tick. Callbacks registered while a
// frame is being processed run on the following frame.
func (l *Loop) NextFrame(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.frames = append(l.frames, fn)
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Run executes tasks until ctx is cancelled. Pending tasks are dropped.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running || l.stopped {
		l.mu.Unlock()
		return ErrRunning
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.frames = nil
		l.mu.Unlock()
		close(l.done)
	}()

	ticker := time.NewTicker(l.frameInterval)
	defer ticker.Stop()

	for {
		l.drain(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		case <-ticker.C:
			l.runFrame()
		}
	}
}

func (l *Loop) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()
		l.exec(fn)
	}
}

func (l *Loop) runFrame() {
	l.mu.Lock()
	frames := l.frames
	l.frames = nil
	l.mu.Unlock()
	for _, fn := range frames {
		l.exec(fn)
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("uiloop: task panicked", "panic", r)
		}
	}()
	fn()
}
