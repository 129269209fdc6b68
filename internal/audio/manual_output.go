package audio

import (
	"sort"
	"sync"
	"time"
)

// ManualOutput is an Output whose clock only moves when Advance is called.
// It does not produce sound and is meant for tests.
type ManualOutput struct {
	mu      sync.Mutex
	now     time.Duration
	pending []*manualHandle
	started []Started
	failure error
}

// Started records one Start call on a ManualOutput.
type Started struct {
	At       time.Duration
	Duration time.Duration
	Samples  int
}

// NewManualOutput returns an output with its clock at zero.
func NewManualOutput() *ManualOutput {
	return &ManualOutput{}
}

// Now returns the manual clock.
func (m *ManualOutput) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// FailWith makes subsequent Start calls return err. Pass nil to clear.
func (m *ManualOutput) FailWith(err error) {
	m.mu.Lock()
	m.failure = err
	m.mu.Unlock()
}

// Start records the buffer. onEnded fires from Advance once the clock
// passes at plus the buffer duration.
func (m *ManualOutput) Start(buf Buffer, at time.Duration, onEnded func()) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return nil, m.failure
	}

	h := &manualHandle{end: at + buf.Duration(), onEnded: onEnded}
	m.pending = append(m.pending, h)
	m.started = append(m.started, Started{At: at, Duration: buf.Duration(), Samples: len(buf.Samples)})
	return h, nil
}

// Advance moves the clock forward by d and fires the end callbacks of
// buffers that finished, in end-time order.
func (m *ManualOutput) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	now := m.now

	var due, rest []*manualHandle
	for _, h := range m.pending {
		if h.end <= now {
			due = append(due, h)
		} else {
			rest = append(rest, h)
		}
	}
	m.pending = rest
	m.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].end < due[j].end })
	for _, h := range due {
		h.fire()
	}
}

// Started returns every Start call so far.
func (m *ManualOutput) Started() []Started {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Started, len(m.started))
	copy(out, m.started)
	return out
}

// Pending returns how many buffers have neither ended nor been stopped.
func (m *ManualOutput) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, h := range m.pending {
		if !h.isStopped() {
			n++
		}
	}
	return n
}

type manualHandle struct {
	mu      sync.Mutex
	end     time.Duration
	onEnded func()
	stopped bool
}

func (h *manualHandle) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
}

func (h *manualHandle) isStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

func (h *manualHandle) fire() {
	if h.isStopped() || h.onEnded == nil {
		return
	}
	h.onEnded()
}
