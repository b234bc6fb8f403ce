package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/Skryldev/image-converter/errors"
)

// Loader starts a Runtime at most once at a time and remembers success.
// Concurrent EnsureReady callers share one in-flight attempt and its outcome.
// A failed attempt is forgotten, so the next call starts a new one.
type Loader struct {
	rt      Runtime
	timeout time.Duration
	logger  Logger

	mu       sync.Mutex
	ready    bool
	call     *initCall
	attempts int64
}

type initCall struct {
	done    chan struct{}
	err     error
	waiters int
}

// NewLoader creates a Loader for rt.  timeout bounds one Startup attempt;
// zero means no bound.
func NewLoader(rt Runtime, timeout time.Duration) *Loader {
	return &Loader{rt: rt, timeout: timeout, logger: nopLogger{}}
}

// SetLogger attaches a structured logger.
func (l *Loader) SetLogger(lg Logger) {
	if lg != nil {
		l.logger = lg
	}
}

// EnsureReady blocks until the runtime is started.  Every caller waiting on
// the same attempt gets the same error.  A caller whose ctx ends stops waiting
// but does not cancel the attempt for others.
func (l *Loader) EnsureReady(ctx context.Context) error {
	l.mu.Lock()
	if l.ready {
		l.mu.Unlock()
		return nil
	}
	c := l.call
	if c == nil {
		c = &initCall{done: make(chan struct{})}
		l.call = c
		l.attempts++
		go l.run(context.WithoutCancel(ctx), c)
	}
	c.waiters++
	l.mu.Unlock()

	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return apperrors.Unavailable("loader.wait", ctx.Err())
	}
}

func (l *Loader) run(ctx context.Context, c *initCall) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	l.logger.Debug("runtime.init.start", "runtime", l.rt.Name())
	err := l.startup(ctx)

	l.mu.Lock()
	if err != nil {
		c.err = apperrors.Unavailable("loader.startup", err)
	} else {
		l.ready = true
	}
	l.call = nil
	waiters := c.waiters
	l.mu.Unlock()
	close(c.done)

	if err != nil {
		l.logger.Error("runtime.init.failed",
			"runtime", l.rt.Name(),
			"waiters", waiters,
			"error", err.Error(),
		)
		return
	}
	l.logger.Info("runtime.init.ready",
		"runtime", l.rt.Name(),
		"waiters", waiters,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (l *Loader) startup(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runtime startup panicked: %v", r)
		}
	}()
	return l.rt.Startup(ctx)
}

// Ready reports whether the runtime has been started.
func (l *Loader) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// Attempts returns how many startup attempts have been made.
func (l *Loader) Attempts() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}

// pending returns the number of callers attached to the in-flight attempt.
func (l *Loader) pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.call == nil {
		return 0
	}
	return l.call.waiters
}

// Shutdown waits for an in-flight attempt and stops the runtime if it is
// running.  A later EnsureReady starts it again.
func (l *Loader) Shutdown() {
	l.mu.Lock()
	c := l.call
	l.mu.Unlock()
	if c != nil {
		<-c.done
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ready {
		return
	}
	l.rt.Shutdown()
	l.ready = false
	l.logger.Info("runtime.shutdown", "runtime", l.rt.Name())
}
