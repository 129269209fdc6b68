package live

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lusa-tutor/lusa/internal/audio"
	"github.com/lusa-tutor/lusa/internal/curriculum"
	"github.com/lusa-tutor/lusa/internal/gemini"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	events chan gemini.LiveEvent
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	sent [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan gemini.LiveEvent), closed: make(chan struct{})}
}

func (c *fakeConn) SendAudio(pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, pcm)
	return nil
}

func (c *fakeConn) Receive() (gemini.LiveEvent, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.closed:
		return gemini.LiveEvent{}, io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

type fakePlayer struct {
	mu     sync.Mutex
	chunks int
	stops  int
}

func (p *fakePlayer) Enqueue(pcm []byte) (audio.Scheduled, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(pcm) == 0 {
		return audio.Scheduled{}, audio.ErrEmptyBuffer
	}
	p.chunks++
	return audio.Scheduled{}, nil
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	p.stops++
	p.mu.Unlock()
}

func (p *fakePlayer) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chunks, p.stops
}

func newTestSession(t *testing.T, conn *fakeConn, player *fakePlayer) (*Session, *gemini.LiveConfig) {
	t.Helper()
	var got gemini.LiveConfig
	dial := func(_ context.Context, cfg gemini.LiveConfig) (Conn, error) {
		got = cfg
		return conn, nil
	}
	c := curriculum.CharacterByID("miguel")
	s := NewSession(dial, player, c, curriculum.Spanish, curriculum.B1, WithChunkSamples(4))
	t.Cleanup(func() { _ = s.Stop() })
	return s, &got
}

func TestStart_ConnectsWithCharacterVoice(t *testing.T) {
	conn := newFakeConn()
	s, cfg := newTestSession(t, conn, &fakePlayer{})

	require.NoError(t, s.Start(context.Background(), bytes.NewReader(nil)))

	assert.Equal(t, "Fenrir", cfg.Voice)
	assert.Contains(t, cfg.SystemInstruction, "You are Miguel")
	assert.Contains(t, cfg.SystemInstruction, "LIVE VOICE session")
	assert.Contains(t, cfg.SystemInstruction, string(curriculum.B1))
	assert.NotContains(t, cfg.SystemInstruction, "{{")
	assert.NotEmpty(t, s.ID())

	assert.ErrorIs(t, s.Start(context.Background(), nil), ErrAlreadyStarted)
}

func TestCapture_SendsFrames(t *testing.T) {
	conn := newFakeConn()
	s, _ := newTestSession(t, conn, &fakePlayer{})

	// Two full 4-sample frames and a partial one that is dropped.
	mic := bytes.NewReader(make([]byte, 8*2+3))
	require.NoError(t, s.Start(context.Background(), mic))

	require.Eventually(t, func() bool { return len(conn.frames()) == 2 }, time.Second, 5*time.Millisecond)
	for _, f := range conn.frames() {
		assert.Len(t, f, 8)
	}
}

func TestReceive_HandlesEvents(t *testing.T) {
	conn := newFakeConn()
	player := &fakePlayer{}
	s, _ := newTestSession(t, conn, player)

	var mu sync.Mutex
	var pieces []string
	turns := 0
	s.OnTranscript = func(text string) {
		mu.Lock()
		pieces = append(pieces, text)
		mu.Unlock()
	}
	s.OnTurnComplete = func() {
		mu.Lock()
		turns++
		mu.Unlock()
	}
	require.NoError(t, s.Start(context.Background(), bytes.NewReader(nil)))

	conn.events <- gemini.LiveEvent{Audio: [][]byte{{1, 0}, {2, 0}}, Transcript: "Hola, "}
	conn.events <- gemini.LiveEvent{Transcript: "¿qué tal?"}
	require.Eventually(t, s.Speaking, time.Second, 5*time.Millisecond)

	conn.events <- gemini.LiveEvent{TurnComplete: true}
	require.Eventually(t, func() bool { return !s.Speaking() }, time.Second, 5*time.Millisecond)

	conn.events <- gemini.LiveEvent{Audio: [][]byte{{3, 0}}, Interrupted: true}
	conn.events <- gemini.LiveEvent{} // flush: the previous event has been handled

	chunks, stops := player.counts()
	assert.Equal(t, 3, chunks)
	assert.Equal(t, 1, stops)
	assert.Equal(t, "Hola, ¿qué tal?", s.Transcript())

	mu.Lock()
	assert.Equal(t, []string{"Hola, ", "¿qué tal?"}, pieces)
	assert.Equal(t, 1, turns)
	mu.Unlock()
}

func TestStop_Idempotent(t *testing.T) {
	conn := newFakeConn()
	player := &fakePlayer{}
	s, _ := newTestSession(t, conn, player)
	require.NoError(t, s.Start(context.Background(), strings.NewReader("")))

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("receive loop did not exit")
	}
	assert.NoError(t, s.Err(), "a stopped session has no error")
	_, stops := player.counts()
	assert.Equal(t, 1, stops)
}

func TestConnectionLossIsReported(t *testing.T) {
	conn := newFakeConn()
	s, _ := newTestSession(t, conn, &fakePlayer{})
	require.NoError(t, s.Start(context.Background(), bytes.NewReader(nil)))

	_ = conn.Close()
	<-s.Done()
	assert.ErrorIs(t, s.Err(), io.EOF)
}

func TestDialFailure(t *testing.T) {
	boom := errors.New("boom")
	dial := func(context.Context, gemini.LiveConfig) (Conn, error) { return nil, boom }
	s := NewSession(dial, &fakePlayer{}, curriculum.CharacterByID("sofia"), curriculum.English, curriculum.A1)

	err := s.Start(context.Background(), bytes.NewReader(nil))
	assert.ErrorIs(t, err, boom)
	<-s.Done()
	assert.NoError(t, s.Stop())
}
