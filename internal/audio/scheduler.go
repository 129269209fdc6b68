package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lusa-tutor/lusa/internal/observability"
)

// ErrEmptyBuffer is returned when there is nothing to schedule.
var ErrEmptyBuffer = errors.New("audio buffer is empty")

// Output is an audio sink with its own clock.
//
// Start must not call onEnded synchronously. onEnded is not called for
// handles that were stopped.
type Output interface {
	Now() time.Duration
	Start(buf Buffer, at time.Duration, onEnded func()) (Handle, error)
}

// Handle is a buffer that has been handed to an Output.
type Handle interface {
	Stop()
}

// Scheduled describes where a buffer landed on the output timeline.
type Scheduled struct {
	Start    time.Duration
	Duration time.Duration
	Session  uint64
}

// End returns when the buffer finishes playing.
func (s Scheduled) End() time.Duration {
	return s.Start + s.Duration
}

type playback struct {
	handle  Handle
	session uint64
}

// Scheduler plays buffers back to back on an Output. Each buffer starts at
// the later of the output clock and the end of the previous buffer, so
// chunks arriving faster than real time queue up without gaps or overlap.
type Scheduler struct {
	out        Output
	sampleRate int
	lead       time.Duration

	mu      sync.Mutex
	cursor  time.Duration
	active  map[*playback]struct{}
	session uint64
	onIdle  func()

	logger *log.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLead delays a buffer that starts from an idle timeline.
func WithLead(lead time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.lead = lead }
}

// WithSampleRate sets the rate Enqueue decodes PCM at.
func WithSampleRate(rate int) SchedulerOption {
	return func(s *Scheduler) { s.sampleRate = rate }
}

// WithIdleCallback runs fn when the last buffer of the current session ends.
func WithIdleCallback(fn func()) SchedulerOption {
	return func(s *Scheduler) { s.onIdle = fn }
}

// NewScheduler creates a scheduler over out.
func NewScheduler(out Output, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		out:        out,
		sampleRate: OutputSampleRate,
		active:     make(map[*playback]struct{}),
		logger:     log.Default().WithPrefix("audio"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetIdleCallback replaces the idle callback.
func (s *Scheduler) SetIdleCallback(fn func()) {
	s.mu.Lock()
	s.onIdle = fn
	s.mu.Unlock()
}

// Enqueue decodes 16-bit PCM and schedules it.
func (s *Scheduler) Enqueue(pcm []byte) (Scheduled, error) {
	buf, err := DecodePCM16(pcm, s.sampleRate)
	if err != nil {
		return Scheduled{}, err
	}
	return s.Schedule(buf)
}

// Schedule places buf at the cursor and advances it by the buffer length.
func (s *Scheduler) Schedule(buf Buffer) (Scheduled, error) {
	if len(buf.Samples) == 0 {
		return Scheduled{}, ErrEmptyBuffer
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.out.Now()
	start := s.cursor
	if start < now {
		start = now + s.lead
	}

	p := &playback{session: s.session}
	handle, err := s.out.Start(buf, start, func() { s.ended(p) })
	if err != nil {
		return Scheduled{}, err
	}
	p.handle = handle

	sc := Scheduled{Start: start, Duration: buf.Duration(), Session: s.session}
	s.cursor = sc.End()
	s.active[p] = struct{}{}

	observability.RecordBufferScheduled()
	s.logger.Debug("Scheduled buffer", "start", start, "duration", sc.Duration, "session", s.session)
	return sc, nil
}

func (s *Scheduler) ended(p *playback) {
	s.mu.Lock()
	delete(s.active, p)
	idle := len(s.active) == 0 && p.session == s.session
	cb := s.onIdle
	s.mu.Unlock()

	if idle && cb != nil {
		cb()
	}
}

// Stop invalidates the current session, stops every active buffer and
// rewinds the cursor.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.session++
	handles := make([]Handle, 0, len(s.active))
	for p := range s.active {
		handles = append(handles, p.handle)
	}
	s.active = make(map[*playback]struct{})
	s.cursor = 0
	s.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
	if len(handles) > 0 {
		observability.RecordPlaybackStop()
		s.logger.Debug("Stopped playback", "buffers", len(handles))
	}
}

// Session returns the current playback session id.
func (s *Scheduler) Session() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Active returns how many buffers are scheduled or playing.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Playing reports whether any buffer is scheduled or playing.
func (s *Scheduler) Playing() bool {
	return s.Active() > 0
}

// Cursor returns where the next buffer would start if the clock stood still.
func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Drain blocks until nothing is playing or ctx is done.
func (s *Scheduler) Drain(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for s.Playing() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
