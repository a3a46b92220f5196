package crop

import (
	"sync"
	"time"
)

// DefaultDebounce is how long a burst of interactive changes must stay quiet
// before it is recorded as a single history entry.
const DefaultDebounce = 500 * time.Millisecond

type RecorderConfig struct {
	// Window is the debounce window. Zero means DefaultDebounce.
	Window time.Duration
	// Depth caps the history. Zero means DefaultHistoryDepth.
	Depth int
	// OnCommit, when set, is called with the new history after every push.
	// It runs on the timer goroutine for debounced pushes and must not call back into the Recorder.
	OnCommit func(History)
}

// Recorder feeds a History from live edits. Each Recorder owns its own timer,
// so independent editors never share debounce state.
type Recorder struct {
	mu      sync.Mutex
	cfg     RecorderConfig
	history History
	timer   *time.Timer
	pending EditState
	hasPend bool
	burst   uint64
	closed  bool
}

// NewRecorder starts a history seeded with initial.
func NewRecorder(initial EditState, cfg RecorderConfig) *Recorder {
	if cfg.Window <= 0 {
		cfg.Window = DefaultDebounce
	}
	return &Recorder{
		cfg:     cfg,
		history: NewHistory(cfg.Depth).Push(initial),
	}
}

// Propose records s once no newer proposal arrives within the debounce window.
// A new proposal cancels the pending one and restarts the timer.
func (r *Recorder) Propose(s EditState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.stopLocked()
	r.pending = s
	r.hasPend = true
	r.burst++
	burst := r.burst
	r.timer = time.AfterFunc(r.cfg.Window, func() { r.fire(burst) })
}

func (r *Recorder) fire(burst uint64) {
	r.mu.Lock()
	if r.closed || !r.hasPend || burst != r.burst {
		r.mu.Unlock()
		return
	}
	h := r.pushLocked(r.pending)
	r.mu.Unlock()
	r.notify(h)
}

// Commit records s immediately and drops any pending proposal.
func (r *Recorder) Commit(s EditState) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.stopLocked()
	h := r.pushLocked(s)
	r.mu.Unlock()
	r.notify(h)
}

// Flush records the pending proposal now. It reports whether there was one.
func (r *Recorder) Flush() bool {
	r.mu.Lock()
	if r.closed || !r.hasPend {
		r.mu.Unlock()
		return false
	}
	s := r.pending
	r.stopLocked()
	h := r.pushLocked(s)
	r.mu.Unlock()
	r.notify(h)
	return true
}

// Undo flushes any pending proposal and steps back one entry.
func (r *Recorder) Undo() EditState {
	r.Flush()
	r.mu.Lock()
	defer r.mu.Unlock()
	var s EditState
	s, r.history = r.history.Undo()
	return s
}

// Redo flushes any pending proposal and steps forward one entry.
func (r *Recorder) Redo() EditState {
	r.Flush()
	r.mu.Lock()
	defer r.mu.Unlock()
	var s EditState
	s, r.history = r.history.Redo()
	return s
}

// Reset discards the history and starts again from initial.
func (r *Recorder) Reset(initial EditState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.history = NewHistory(r.cfg.Depth).Push(initial)
}

func (r *Recorder) History() History {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history
}

func (r *Recorder) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasPend
}

// Close stops the timer. Pending proposals are dropped.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.closed = true
}

func (r *Recorder) stopLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.hasPend = false
	r.burst++
}

func (r *Recorder) pushLocked(s EditState) History {
	r.history = r.history.Push(s)
	r.hasPend = false
	return r.history
}

func (r *Recorder) notify(h History) {
	if r.cfg.OnCommit != nil {
		r.cfg.OnCommit(h)
	}
}
