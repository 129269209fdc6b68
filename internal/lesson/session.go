package lesson

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/lusa-tutor/lusa/internal/audio"
	"github.com/lusa-tutor/lusa/internal/curriculum"
	"github.com/lusa-tutor/lusa/internal/observability"
	"github.com/lusa-tutor/lusa/internal/profile"
	"github.com/lusa-tutor/lusa/internal/resilience"
	"github.com/lusa-tutor/lusa/internal/speech"
)

// StepCompleteXP is the reply XP that signals the step is done.
const StepCompleteXP = 50

var (
	ErrNotStarted   = errors.New("lesson not started")
	ErrNoSuchReply  = errors.New("no tutor reply at that position")
	ErrVoiceOffline = errors.New("voice is not available")
)

// Chat is a conversation with the tutor model.
type Chat interface {
	Send(ctx context.Context, text string) (string, error)
	SendAudio(ctx context.Context, prompt string, audio []byte, mimeType string) (string, error)
}

// ChatFactory opens a conversation with the given system instruction.
type ChatFactory func(ctx context.Context, systemInstruction string) (Chat, error)

// Speaker synthesizes tutor speech.
type Speaker interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Player plays synthesized speech.
type Player interface {
	Enqueue(pcm []byte) (audio.Scheduled, error)
	Stop()
}

// Cooldown exposes the voice cooldown window.
type Cooldown interface {
	OnCooldown() bool
	CooldownSeconds() int
}

// Notice is a message for the learner about voice availability.
type Notice struct {
	Message string
	Quota   bool
}

// Outcome summarizes what a tutor reply means for progression.
type Outcome struct {
	Index        int
	XPEarned     int
	Encouraged   bool
	StepComplete bool
}

// Session is one lesson on one step of a subject.
type Session struct {
	profile   *profile.Profile
	subject   curriculum.Subject
	step      int
	character curriculum.Character
	lang      curriculum.NativeLanguage

	newChat  ChatFactory
	retrier  *resilience.Retrier
	speaker  Speaker
	player   Player
	cooldown Cooldown
	now      func() time.Time
	logger   *log.Logger

	mu         sync.Mutex
	chat       Chat
	messages   []Message
	muted      bool
	fetching   bool
	speaking   int
	lastNotice *Notice

	// OnNotice is called whenever a voice notice is raised.
	OnNotice func(Notice)
}

// Option configures a Session.
type Option func(*Session)

// WithVoice enables spoken replies.
func WithVoice(speaker Speaker, player Player, cooldown Cooldown) Option {
	return func(s *Session) {
		s.speaker = speaker
		s.player = player
		s.cooldown = cooldown
	}
}

// WithRetrier routes chat turns through r, so chat quota errors also open
// the voice cooldown.
func WithRetrier(r *resilience.Retrier) Option {
	return func(s *Session) { s.retrier = r }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithClock replaces time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession prepares a lesson on the profile's current subject and step.
func NewSession(p *profile.Profile, newChat ChatFactory, opts ...Option) *Session {
	s := &Session{
		profile:   p,
		subject:   p.CurrentSubject(),
		step:      p.Progress.CurrentStepIndex,
		character: p.Character(),
		lang:      p.NativeLanguage,
		newChat:   newChat,
		now:       time.Now,
		speaking:  -1,
		logger:    log.Default().WithPrefix("lesson"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subject returns the subject being taught.
func (s *Session) Subject() curriculum.Subject { return s.subject }

// StepIndex returns the step being taught.
func (s *Session) StepIndex() int { return s.step }

// Character returns the tutor.
func (s *Session) Character() curriculum.Character { return s.character }

// Profile returns the learner profile the lesson updates.
func (s *Session) Profile() *profile.Profile { return s.profile }

// CompleteStep records the current step as finished on the profile and
// reports whether that completed the subject.
func (s *Session) CompleteStep() (bool, error) {
	return s.profile.CompleteStep(s.subject.ID, s.step)
}

// Start opens the chat and asks the tutor to begin.
func (s *Session) Start(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()

	instruction := curriculum.SystemInstruction(s.character, s.lang)
	chat, err := s.newChat(ctx, instruction)
	if err != nil {
		return Outcome{}, fmt.Errorf("start chat: %w", err)
	}
	s.mu.Lock()
	s.chat = chat
	s.mu.Unlock()

	prompt := curriculum.StartLessonPrompt(s.character, s.lang, s.subject)
	reply, err := s.send(ctx, func(ctx context.Context, c Chat) (string, error) {
		return c.Send(ctx, curriculum.ContextPrefix(s.lang)+prompt)
	})
	if err != nil {
		return Outcome{}, err
	}
	return s.addReply(ctx, reply), nil
}

// Send sends a typed learner turn.
func (s *Session) Send(ctx context.Context, text string) (Outcome, error) {
	s.appendMessage(Message{Role: RoleUser, Text: text})

	reply, err := s.send(ctx, func(ctx context.Context, c Chat) (string, error) {
		return c.Send(ctx, curriculum.ContextPrefix(s.lang)+text)
	})
	if err != nil {
		return Outcome{}, err
	}
	return s.addReply(ctx, reply), nil
}

// SendVoice sends a recorded learner turn.
func (s *Session) SendVoice(ctx context.Context, recording []byte, mimeType string) (Outcome, error) {
	s.appendMessage(Message{Role: RoleUser, Text: VoiceMessageText})

	reply, err := s.send(ctx, func(ctx context.Context, c Chat) (string, error) {
		return c.SendAudio(ctx, curriculum.VoiceInputPrompt(s.lang), recording, mimeType)
	})
	if err != nil {
		return Outcome{}, err
	}
	return s.addReply(ctx, reply), nil
}

func (s *Session) send(ctx context.Context, fn func(context.Context, Chat) (string, error)) (string, error) {
	s.mu.Lock()
	chat := s.chat
	s.mu.Unlock()
	if chat == nil {
		return "", ErrNotStarted
	}

	start := time.Now()
	call := func(ctx context.Context) (string, error) { return fn(ctx, chat) }

	var reply string
	var err error
	if s.retrier != nil {
		reply, err = resilience.Call(ctx, s.retrier, call)
	} else {
		reply, err = call(ctx)
	}

	status := "ok"
	switch {
	case resilience.IsQuota(err):
		status = "quota"
	case err != nil:
		status = "error"
	}
	observability.RecordChatRequest(status, time.Since(start))

	if err != nil {
		s.logger.Error("Chat turn failed", "subject", s.subject.ID, "err", err)
		return "", err
	}
	if reply == "" {
		reply = EmptyReply
	}
	return reply, nil
}

func (s *Session) appendMessage(m Message) int {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return len(s.messages) - 1
}

// addReply records a tutor reply, speaks it and reports its outcome.
func (s *Session) addReply(ctx context.Context, raw string) Outcome {
	text, xp := ParseXP(raw)

	var clip []byte
	if s.voiceWanted() {
		clip = s.synthesize(ctx, text, false)
	}

	idx := s.appendMessage(Message{
		Role:      RoleModel,
		Text:      text,
		Character: s.character.ID,
		XPEarned:  xp,
	})

	if clip != nil {
		s.play(clip, idx)
	}

	out := Outcome{Index: idx, XPEarned: xp}
	if xp > 0 {
		s.profile.AddXP(xp)
		out.Encouraged = IsEncouragement(text)
		out.StepComplete = xp >= StepCompleteXP
	}
	return out
}

func (s *Session) voiceWanted() bool {
	if s.speaker == nil {
		return false
	}
	s.mu.Lock()
	muted := s.muted
	s.mu.Unlock()
	return !muted && !s.onCooldown()
}

func (s *Session) onCooldown() bool {
	return s.cooldown != nil && s.cooldown.OnCooldown()
}

func (s *Session) cooldownSeconds() int {
	if s.cooldown == nil {
		return 0
	}
	return s.cooldown.CooldownSeconds()
}

// synthesize fetches speech, muting the voice on quota errors.
func (s *Session) synthesize(ctx context.Context, text string, retry bool) []byte {
	s.mu.Lock()
	s.fetching = true
	s.lastNotice = nil
	s.mu.Unlock()

	clip, err := s.speaker.Synthesize(ctx, text, s.character.Voice)

	s.mu.Lock()
	s.fetching = false
	s.mu.Unlock()

	if err == nil {
		return clip
	}

	if errors.Is(err, speech.ErrCooldown) {
		// another reply tripped the cooldown while this one waited
		s.logger.Debug("Voice skipped during cooldown", "voice", s.character.Voice)
		return nil
	}
	s.logger.Warn("Voice generation failed", "voice", s.character.Voice, "err", err)
	if resilience.IsQuota(err) {
		s.mu.Lock()
		s.muted = true
		s.mu.Unlock()
		minutes := int(math.Ceil(float64(s.cooldownSeconds()) / 60))
		msg := fmt.Sprintf("O limite de voz da conta gratuita foi atingido. Voz desativada por %d min.", minutes)
		if retry {
			msg = fmt.Sprintf("Voz indisponível. O limite gratuito foi atingido. Voz desativada por %d min.", minutes)
		}
		s.notify(Notice{Message: msg, Quota: true})
		return nil
	}
	s.notify(Notice{Message: "Erro ao carregar voz."})
	return nil
}

func (s *Session) play(clip []byte, idx int) {
	if s.player == nil {
		return
	}
	s.mu.Lock()
	s.speaking = idx
	s.mu.Unlock()

	if _, err := s.player.Enqueue(clip); err != nil {
		s.logger.Error("Audio playback error", "err", err)
		s.PlaybackEnded()
	}
}

// PlaybackEnded clears the speaking marker. Wire it as the scheduler's
// idle callback.
func (s *Session) PlaybackEnded() {
	s.mu.Lock()
	s.speaking = -1
	s.mu.Unlock()
}

func (s *Session) notify(n Notice) {
	s.mu.Lock()
	s.lastNotice = &n
	cb := s.OnNotice
	s.mu.Unlock()
	if cb != nil {
		cb(n)
	}
}

// RetryVoice speaks tutor reply i again, unmuting the voice if the
// cooldown has passed.
func (s *Session) RetryVoice(ctx context.Context, i int) error {
	if s.speaker == nil {
		return ErrVoiceOffline
	}

	s.mu.Lock()
	if i < 0 || i >= len(s.messages) || s.messages[i].Role != RoleModel {
		s.mu.Unlock()
		return ErrNoSuchReply
	}
	text := s.messages[i].Text
	s.mu.Unlock()

	if s.onCooldown() {
		s.notify(Notice{
			Message: fmt.Sprintf("Voz temporariamente indisponível. Tenta em %ds ou usa uma chave paga.", s.cooldownSeconds()),
			Quota:   true,
		})
		return nil
	}

	s.mu.Lock()
	s.muted = false
	s.mu.Unlock()

	if clip := s.synthesize(ctx, text, true); clip != nil {
		s.play(clip, i)
	}
	return nil
}

// LastReplyIndex returns the index of the latest tutor reply, or -1.
func (s *Session) LastReplyIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == RoleModel {
			return i
		}
	}
	return -1
}

// StopAudio silences the tutor immediately.
func (s *Session) StopAudio() {
	if s.player != nil {
		s.player.Stop()
	}
	s.PlaybackEnded()
}

// SetMuted turns spoken replies off or on.
func (s *Session) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
	if muted {
		s.StopAudio()
	}
}

// ToggleMute flips the mute state and returns the new state.
func (s *Session) ToggleMute() bool {
	s.mu.Lock()
	muted := !s.muted
	s.mu.Unlock()
	s.SetMuted(muted)
	return muted
}

// Muted reports whether spoken replies are off.
func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Notice returns the last voice notice, if it is still relevant. Quota
// notices expire with the cooldown.
func (s *Session) Notice() (Notice, bool) {
	s.mu.Lock()
	n := s.lastNotice
	s.mu.Unlock()
	if n == nil {
		return Notice{}, false
	}
	if n.Quota && !s.onCooldown() {
		s.mu.Lock()
		s.lastNotice = nil
		s.mu.Unlock()
		return Notice{}, false
	}
	return *n, true
}

// ListenLabel is the status shown next to reply i.
func (s *Session) ListenLabel(i int) string {
	s.mu.Lock()
	speaking, fetching, muted := s.speaking, s.fetching, s.muted
	s.mu.Unlock()

	switch {
	case speaking == i:
		return "A FALAR..."
	case fetching:
		return "A PREPARAR VOZ..."
	case muted:
		if secs := s.cooldownSeconds(); secs > 0 {
			return fmt.Sprintf("VOZ MUTADA (%ds)", secs)
		}
		return "VOZ MUTADA (Ligar?)"
	}
	return "OUVIR"
}
