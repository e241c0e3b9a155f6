// Package autosave turns high-frequency edits of a single text field into
// debounced commits, with a short cosmetic "saving" indicator.
//
// A Session compares the debounced buffer against a fixed baseline (the value
// it was created or last resynchronized with), never against the previous
// buffer value, so typing A→B→A inside one quiet period commits nothing.
// Commits are fire-and-forget: the session never learns whether persistence
// succeeded, and the indicator clears on its own timer.
package autosave

import (
	"sync"
	"time"
)

const (
	DefaultDebounce       = 1000 * time.Millisecond
	DefaultIndicatorDelay = 300 * time.Millisecond
)

// CommitFunc is expected to eventually persist text. Failures are its own concern.
type CommitFunc func(text string)

type State int

const (
	Idle State = iota
	Editing
	Committing
)

func (st State) String() string {
	switch st {
	case Editing:
		return "editing"
	case Committing:
		return "committing"
	default:
		return "idle"
	}
}

type options struct {
	debounce  time.Duration
	indicator time.Duration
	clock     Clock
	onSaving  func(saving bool)
}

type Option func(*options)

func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

func WithIndicatorDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.indicator = d
		}
	}
}

func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithOnSaving registers a callback run whenever the saving indicator may have
// changed. It receives the value current at delivery time.
func WithOnSaving(fn func(saving bool)) Option {
	return func(o *options) { o.onSaving = fn }
}

func buildOptions(opts []Option) options {
	o := options{
		debounce:  DefaultDebounce,
		indicator: DefaultIndicatorDelay,
		clock:     realClock{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Session owns one field's editing lifecycle. It is safe for concurrent use.
type Session struct {
	mu     sync.Mutex
	opts   options
	commit CommitFunc

	baseline string
	text     string
	saving   bool
	closed   bool

	// generations invalidate timer callbacks that already fired but lost the race with Stop
	debounce     Timer
	debounceGen  uint64
	indicator    Timer
	indicatorGen uint64

	lastActive time.Time

	notifyMu sync.Mutex
}

func New(initial string, commit CommitFunc, opts ...Option) *Session {
	if commit == nil {
		commit = func(string) {}
	}
	o := buildOptions(opts)
	return &Session{
		opts:       o,
		commit:     commit,
		baseline:   initial,
		text:       initial,
		lastActive: o.clock.Now(),
	}
}

func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

func (s *Session) Baseline() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline
}

func (s *Session) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.debounce != nil:
		return Editing
	case s.saving:
		return Committing
	default:
		return Idle
	}
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SetText replaces the buffer and restarts the debounce timer when the value changed.
func (s *Session) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || text == s.text {
		return
	}
	s.text = text
	s.lastActive = s.opts.clock.Now()

	s.stopDebounceLocked()
	gen := s.debounceGen
	s.debounce = s.opts.clock.AfterFunc(s.opts.debounce, func() { s.fire(gen) })
}

// Resync overwrites the buffer and baseline with a new authoritative value.
// Edits whose debounce has not fired yet are dropped.
func (s *Session) Resync(initial string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopDebounceLocked()
	s.baseline = initial
	s.text = initial
	s.lastActive = s.opts.clock.Now()
}

// Rebase moves the baseline to a value known to be persisted and keeps the
// buffer. If the buffer differs and no debounce is pending, a commit is
// scheduled so edits made while persisting are not stranded.
func (s *Session) Rebase(persisted string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.baseline = persisted
	if s.text == persisted || s.debounce != nil {
		return
	}
	s.debounceGen++
	gen := s.debounceGen
	s.debounce = s.opts.clock.AfterFunc(s.opts.debounce, func() { s.fire(gen) })
}

// Close cancels both timers. No commit or indicator change happens afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopDebounceLocked()
	if s.indicator != nil {
		s.indicator.Stop()
		s.indicator = nil
	}
	s.indicatorGen++
	s.saving = false
}

func (s *Session) stopDebounceLocked() {
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	s.debounceGen++
}

func (s *Session) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.debounceGen {
		s.mu.Unlock()
		return
	}
	s.debounce = nil
	text := s.text
	if text == s.baseline {
		s.mu.Unlock()
		return
	}

	s.saving = true
	if s.indicator != nil {
		s.indicator.Stop()
	}
	s.indicatorGen++
	igen := s.indicatorGen
	s.indicator = s.opts.clock.AfterFunc(s.opts.indicator, func() { s.clearSaving(igen) })
	commit := s.commit
	s.mu.Unlock()

	s.notify()
	commit(text)
}

func (s *Session) clearSaving(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.indicatorGen {
		s.mu.Unlock()
		return
	}
	s.saving = false
	s.indicator = nil
	s.mu.Unlock()

	s.notify()
}

func (s *Session) notify() {
	if s.opts.onSaving == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.opts.onSaving(s.Saving())
}
