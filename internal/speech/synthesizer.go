package speech

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lusa-tutor/lusa/internal/cache"
	"github.com/lusa-tutor/lusa/internal/observability"
	"github.com/lusa-tutor/lusa/internal/resilience"
)

// Generator turns text into 24 kHz mono 16-bit PCM with a prebuilt voice.
type Generator interface {
	Generate(ctx context.Context, text, voice string) ([]byte, error)
}

// AudioCache stores synthesized clips by key.
type AudioCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// Synthesizer runs every speech request through cleaning, the cache, the
// throttle and the retry policy, in that order.
type Synthesizer struct {
	generator Generator
	throttle  *Throttle
	retrier   *resilience.Retrier
	cache     AudioCache
	logger    *log.Logger
}

// SynthesizerOption configures a Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithCache enables the clip cache.
func WithCache(c AudioCache) SynthesizerOption {
	return func(s *Synthesizer) { s.cache = c }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) SynthesizerOption {
	return func(s *Synthesizer) { s.logger = logger }
}

// NewSynthesizer wires a generator to a throttle and retrier. Quota failures
// seen by the retrier open the throttle's cooldown window.
func NewSynthesizer(g Generator, t *Throttle, r *resilience.Retrier, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		generator: g,
		throttle:  t,
		retrier:   r,
		logger:    log.Default().WithPrefix("speech"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if r != nil && r.OnQuota == nil {
		r.OnQuota = t.TripCooldown
	}
	return s
}

// Throttle exposes the cooldown state for status displays.
func (s *Synthesizer) Throttle() *Throttle {
	return s.throttle
}

// Synthesize returns PCM for text. A nil clip with a nil error means there
// was nothing to say. ErrCooldown is returned without contacting the provider.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if s.generator == nil {
		return nil, ErrNoGenerator
	}
	if len([]rune(text)) < MinTextLength {
		observability.RecordTTSRequest("skipped", 0)
		return nil, nil
	}
	if s.throttle.OnCooldown() {
		observability.RecordTTSRequest("cooldown", 0)
		return nil, ErrCooldown
	}

	clean := CleanText(text)
	if len([]rune(clean)) < MinTextLength {
		observability.RecordTTSRequest("skipped", 0)
		return nil, nil
	}

	key := cache.Key(clean, voice)
	if s.cache != nil {
		if clip, ok := s.cache.Get(key); ok {
			s.logger.Debug("Speech cache hit", "voice", voice, "bytes", len(clip))
			observability.RecordTTSRequest("cached", 0)
			return clip, nil
		}
	}

	if err := s.throttle.Acquire(ctx); err != nil {
		if errors.Is(err, ErrCooldown) {
			observability.RecordTTSRequest("cooldown", 0)
		}
		return nil, err
	}

	start := time.Now()
	clip, err := resilience.Call(ctx, s.retrier, func(ctx context.Context) ([]byte, error) {
		return s.generator.Generate(ctx, clean, voice)
	})
	elapsed := time.Since(start)
	observability.SetVoiceCooldown(s.throttle.CooldownRemaining())

	switch {
	case resilience.IsQuota(err):
		observability.RecordTTSRequest("quota", elapsed)
		return nil, err
	case resilience.IsAudioGen(err):
		observability.RecordTTSRequest("audio_failed", elapsed)
		return nil, err
	case err != nil:
		observability.RecordTTSRequest("error", elapsed)
		s.logger.Error("Speech synthesis failed", "voice", voice, "err", err)
		return nil, err
	}

	if len(clip) == 0 {
		observability.RecordTTSRequest("skipped", elapsed)
		return nil, nil
	}

	observability.RecordTTSRequest("ok", elapsed)
	s.logger.Debug("Speech synthesized", "voice", voice, "chars", len(clean), "bytes", len(clip), "took", elapsed)

	if s.cache != nil {
		if err := s.cache.Put(key, clip); err != nil {
			s.logger.Warn("Could not cache speech", "err", err)
		}
	}
	return clip, nil
}
