// Package live runs a bidirectional voice conversation with the tutor:
// microphone frames stream up, spoken replies stream down and play
// back-to-back on the audio scheduler.
package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/lusa-tutor/lusa/internal/audio"
	"github.com/lusa-tutor/lusa/internal/curriculum"
	"github.com/lusa-tutor/lusa/internal/gemini"
	"github.com/lusa-tutor/lusa/internal/observability"
)

// DefaultChunkSamples is the number of 16 kHz samples sent per frame.
const DefaultChunkSamples = 4096

var (
	ErrAlreadyStarted = errors.New("live session already started")
	ErrClosed         = errors.New("live session closed")
)

// Conn is an open live connection.
type Conn interface {
	SendAudio(pcm []byte) error
	Receive() (gemini.LiveEvent, error)
	Close() error
}

// Dialer opens a live connection.
type Dialer func(ctx context.Context, cfg gemini.LiveConfig) (Conn, error)

// Player plays streamed speech.
type Player interface {
	Enqueue(pcm []byte) (audio.Scheduled, error)
	Stop()
}

// Session is one live voice conversation.
type Session struct {
	id           string
	dial         Dialer
	player       Player
	instruction  string
	voice        string
	chunkSamples int
	logger       *log.Logger

	mu         sync.Mutex
	conn       Conn
	cancel     context.CancelFunc
	started    bool
	stopped    bool
	speaking   bool
	transcript strings.Builder
	done       chan struct{}
	err        error

	// OnTranscript receives each piece of the tutor's spoken text.
	OnTranscript func(text string)
	// OnTurnComplete runs when the tutor finishes a turn.
	OnTurnComplete func()
}

// Option configures a Session.
type Option func(*Session)

// WithChunkSamples sets the microphone frame size.
func WithChunkSamples(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.chunkSamples = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// NewSession prepares a live session with character c. The tutor speaks
// with the character's voice.
func NewSession(dial Dialer, player Player, c curriculum.Character, lang curriculum.NativeLanguage, level curriculum.Level, opts ...Option) *Session {
	id := uuid.NewString()
	s := &Session{
		id:           id,
		dial:         dial,
		player:       player,
		instruction:  curriculum.LiveInstruction(c, lang, level),
		voice:        c.Voice,
		chunkSamples: DefaultChunkSamples,
		logger:       log.Default().WithPrefix("live").With("session", id),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Start connects and begins streaming mic. It returns once the
// connection is open.
func (s *Session) Start(ctx context.Context, mic io.Reader) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	conn, err := s.dial(ctx, gemini.LiveConfig{SystemInstruction: s.instruction, Voice: s.voice})
	if err != nil {
		cancel()
		close(s.done)
		return fmt.Errorf("connect live session: %w", err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		_ = conn.Close()
		close(s.done)
		return ErrClosed
	}
	s.conn = conn
	s.cancel = cancel
	s.mu.Unlock()

	observability.LiveSessionStarted()
	s.logger.Info("Live session started", "voice", s.voice)

	go s.capture(ctx, conn, mic)
	go s.receive(conn)
	return nil
}

func (s *Session) capture(ctx context.Context, conn Conn, mic io.Reader) {
	for ctx.Err() == nil {
		frame, err := audio.ReadFrame(mic, s.chunkSamples)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && ctx.Err() == nil {
				s.logger.Warn("Microphone read failed", "err", err)
			}
			return
		}
		if err := conn.SendAudio(frame); err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("Sending audio failed", "err", err)
			}
			return
		}
	}
}

func (s *Session) receive(conn Conn) {
	defer close(s.done)
	defer observability.LiveSessionEnded()

	for {
		ev, err := conn.Receive()
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			if !stopped {
				s.err = err
			}
			s.mu.Unlock()
			if !stopped {
				s.logger.Error("Live session ended", "err", err)
			}
			return
		}
		s.handle(ev)
	}
}

func (s *Session) handle(ev gemini.LiveEvent) {
	for _, chunk := range ev.Audio {
		observability.RecordLiveEvent("audio")
		if _, err := s.player.Enqueue(chunk); err != nil {
			s.logger.Warn("Dropping live audio chunk", "err", err)
			continue
		}
		s.setSpeaking(true)
	}

	if ev.Transcript != "" {
		observability.RecordLiveEvent("transcript")
		s.mu.Lock()
		s.transcript.WriteString(ev.Transcript)
		cb := s.OnTranscript
		s.mu.Unlock()
		if cb != nil {
			cb(ev.Transcript)
		}
	}

	if ev.Interrupted {
		observability.RecordLiveEvent("interrupted")
		s.player.Stop()
		s.setSpeaking(false)
	}

	if ev.TurnComplete {
		observability.RecordLiveEvent("turn_complete")
		s.setSpeaking(false)
		s.mu.Lock()
		cb := s.OnTurnComplete
		s.mu.Unlock()
		if cb != nil {
			cb()
		}
	}
}

func (s *Session) setSpeaking(v bool) {
	s.mu.Lock()
	s.speaking = v
	s.mu.Unlock()
}

// Speaking reports whether the tutor is mid-turn.
func (s *Session) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Transcript returns everything the tutor has said so far.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.String()
}

// Stop ends capture, silences playback and closes the connection. It is
// safe to call more than once.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	conn, cancel := s.conn, s.cancel
	s.speaking = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.player.Stop()
	if conn == nil {
		return nil
	}
	s.logger.Info("Live session stopped")
	return conn.Close()
}

// Done is closed when the receive loop exits.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the error that ended the session, or nil if it was stopped.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
