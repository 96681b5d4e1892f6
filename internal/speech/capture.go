package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

var (
	ErrUnsupported      = errors.New("speech recognition is not supported in this environment")
	ErrPermissionDenied = errors.New("speech recognition permission denied")
	ErrStartFailed      = errors.New("could not start speech recognition")
	ErrStopped          = errors.New("speech capture stopped before a final result")
)

// Listener receives engine events for one recognition cycle.
type Listener interface {
	OnResult(text string, isFinal bool)
	OnError(err error)
	OnEnd()
}

type Engine interface {
	Supported() bool
	Start(ctx context.Context, listener Listener) error
	Stop() error
}

type Result struct {
	Transcript string
	Err        error
}

// Capture exposes a dictation engine as a two-state (idle/listening) machine with at
// most one recognition in flight. Each cycle resolves exactly one Result.
type Capture struct {
	engine Engine

	mu         sync.Mutex
	listening  bool
	cycle      uint64
	pending    chan Result
	transcript string
	lastErr    error
	observers  []func(string)
}

func NewCapture(engine Engine) *Capture {
	return &Capture{engine: engine}
}

func (c *Capture) Supported() bool {
	return c.engine != nil && c.engine.Supported()
}

// Start begins a recognition cycle. While already listening it returns the pending
// result of the running cycle and does not touch the engine.
func (c *Capture) Start(ctx context.Context) (<-chan Result, error) {
	c.mu.Lock()
	if c.listening {
		ch := c.pending
		c.mu.Unlock()
		return ch, nil
	}
	if !c.Supported() {
		c.lastErr = ErrUnsupported
		c.mu.Unlock()
		return nil, ErrUnsupported
	}
	c.transcript = ""
	c.lastErr = nil
	c.cycle++
	id := c.cycle
	ch := make(chan Result, 1)
	c.pending = ch
	c.listening = true
	c.mu.Unlock()

	if err := c.engine.Start(ctx, &cycleListener{capture: c, id: id}); err != nil {
		if !errors.Is(err, ErrPermissionDenied) && !errors.Is(err, ErrUnsupported) {
			err = fmt.Errorf("%w: %w", ErrStartFailed, err)
		}
		slog.Warn("speech capture start failed", "error", err)
		c.finish(id, Result{Err: err})
		return nil, err
	}
	return ch, nil
}

// Stop asks the engine to stop. The capture returns to idle when the engine reports
// the end of the cycle; a pending transcript is discarded.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if !c.listening {
		c.mu.Unlock()
		return nil
	}
	id := c.cycle
	c.mu.Unlock()

	if err := c.engine.Stop(); err != nil {
		c.finish(id, Result{Err: ErrStopped})
		return err
	}
	return nil
}

func (c *Capture) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

func (c *Capture) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

func (c *Capture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// OnTranscript registers an observer for final transcripts.
func (c *Capture) OnTranscript(fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

func (c *Capture) finish(id uint64, res Result) bool {
	c.mu.Lock()
	if id != c.cycle || !c.listening {
		c.mu.Unlock()
		return false
	}
	c.listening = false
	switch {
	case res.Err != nil && !errors.Is(res.Err, ErrStopped):
		c.lastErr = res.Err
	case res.Err == nil:
		c.transcript = res.Transcript
	}
	ch := c.pending
	c.pending = nil
	observers := append([]func(string){}, c.observers...)
	c.mu.Unlock()

	ch <- res
	close(ch)
	if res.Err == nil {
		for _, fn := range observers {
			fn(res.Transcript)
		}
	}
	return true
}

type cycleListener struct {
	capture *Capture
	id      uint64
}

func (l *cycleListener) OnResult(text string, isFinal bool) {
	if !isFinal || strings.TrimSpace(text) == "" {
		return
	}
	if !l.capture.finish(l.id, Result{Transcript: strings.TrimSpace(text)}) {
		return
	}
	if err := l.capture.engine.Stop(); err != nil {
		slog.Warn("speech engine auto-stop failed", "error", err)
	}
}

func (l *cycleListener) OnError(err error) {
	l.capture.finish(l.id, Result{Err: err})
}

func (l *cycleListener) OnEnd() {
	l.capture.finish(l.id, Result{Err: ErrStopped})
}
