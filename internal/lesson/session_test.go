package lesson

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lusa-tutor/lusa/internal/audio"
	"github.com/lusa-tutor/lusa/internal/profile"
	"github.com/lusa-tutor/lusa/internal/resilience"
	"github.com/lusa-tutor/lusa/internal/speech"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	mu          sync.Mutex
	instruction string
	sent        []string
	audio       [][]byte
	replies     []string
	errs        []error
}

func (c *fakeChat) next() (string, error) {
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return "", err
		}
	}
	if len(c.replies) == 0 {
		return "", nil
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r, nil
}

func (c *fakeChat) Send(_ context.Context, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return c.next()
}

func (c *fakeChat) SendAudio(_ context.Context, prompt string, rec []byte, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, prompt)
	c.audio = append(c.audio, rec)
	return c.next()
}

func (c *fakeChat) factory() ChatFactory {
	return func(_ context.Context, instruction string) (Chat, error) {
		c.instruction = instruction
		return c, nil
	}
}

type fakeSpeaker struct {
	texts  []string
	voices []string
	err    error

	// quota, when set, is opened on every call, like the synthesizer's
	// throttle does on a quota failure.
	quota *fakeCooldown
}

func (s *fakeSpeaker) Synthesize(_ context.Context, text, voice string) ([]byte, error) {
	s.texts = append(s.texts, text)
	s.voices = append(s.voices, voice)
	if s.quota != nil {
		s.quota.trip()
		return nil, &resilience.Error{Kind: resilience.KindQuotaExhausted, Message: "quota"}
	}
	if s.err != nil {
		return nil, s.err
	}
	return make([]byte, 480), nil // 10ms at 24 kHz
}

type fakeCooldown struct {
	until time.Time
}

func (c *fakeCooldown) trip()            { c.until = time.Now().Add(3 * time.Minute) }
func (c *fakeCooldown) OnCooldown() bool { return time.Now().Before(c.until) }
func (c *fakeCooldown) CooldownSeconds() int {
	rem := time.Until(c.until)
	if rem <= 0 {
		return 0
	}
	return int((rem + time.Second - 1) / time.Second)
}

type fixture struct {
	chat     *fakeChat
	speaker  *fakeSpeaker
	cooldown *fakeCooldown
	out      *audio.ManualOutput
	sched    *audio.Scheduler
	profile  *profile.Profile
	session  *Session
	notices  []Notice
}

func newFixture(t *testing.T, replies ...string) *fixture {
	t.Helper()
	f := &fixture{
		chat:     &fakeChat{replies: replies},
		speaker:  &fakeSpeaker{},
		cooldown: &fakeCooldown{},
		out:      audio.NewManualOutput(),
		profile:  profile.New("Ana"),
	}
	f.sched = audio.NewScheduler(f.out)

	retrier := resilience.NewRetrier(resilience.DefaultRetryConfig(),
		resilience.WithSleep(func(context.Context, time.Duration) error { return nil }))
	retrier.OnQuota = f.cooldown.trip

	f.session = NewSession(f.profile, f.chat.factory(),
		WithVoice(f.speaker, f.sched, f.cooldown),
		WithRetrier(retrier),
	)
	f.sched.SetIdleCallback(f.session.PlaybackEnded)
	f.session.OnNotice = func(n Notice) { f.notices = append(f.notices, n) }
	return f
}

func TestStart_SendsRenderedPrompts(t *testing.T) {
	f := newFixture(t, "Hi! I'm Sofia.\nComo se chama?\nTry it! [XP: 10]")
	f.profile.NativeLanguage = "French"
	f.session = NewSession(f.profile, f.chat.factory(), WithVoice(f.speaker, f.sched, f.cooldown))

	out, err := f.session.Start(context.Background())
	require.NoError(t, err)

	assert.Contains(t, f.chat.instruction, "You are Sofia")
	assert.Contains(t, f.chat.instruction, "100% in French")
	assert.NotContains(t, f.chat.instruction, "{{")

	require.Len(t, f.chat.sent, 1)
	assert.True(t, strings.HasPrefix(f.chat.sent[0], "[CONTEXT: USER NATIVE LANGUAGE IS French."))
	assert.Contains(t, f.chat.sent[0], `START LESSON: Act as Sofia.`)
	assert.Contains(t, f.chat.sent[0], `"Apresentações Pessoais"`)

	assert.Equal(t, 10, out.XPEarned)
	assert.False(t, out.StepComplete)
	assert.Equal(t, 10, f.profile.XP)

	msgs := f.session.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleModel, msgs[0].Role)
	assert.Equal(t, "Hi! I'm Sofia.\nComo se chama?\nTry it!", msgs[0].Text)
	assert.Equal(t, "sofia", msgs[0].Character)
	assert.NotEmpty(t, msgs[0].ID)

	require.Len(t, f.speaker.texts, 1)
	assert.Equal(t, "Kore", f.speaker.voices[0])
	assert.NotContains(t, f.speaker.texts[0], "[XP")
	assert.Equal(t, "A FALAR...", f.session.ListenLabel(0))
}

func TestSend_StepCompleteAndEncouragement(t *testing.T) {
	f := newFixture(t, "Olá", "Parabéns! Excelente trabalho.\nObrigado!\nNext step. [XP: 50]")
	_, err := f.session.Start(context.Background())
	require.NoError(t, err)

	out, err := f.session.Send(context.Background(), "Chamo-me Ana")
	require.NoError(t, err)
	assert.True(t, out.StepComplete)
	assert.True(t, out.Encouraged)
	assert.Equal(t, 2, out.Index)

	msgs := f.session.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleUser, msgs[1].Role)
	assert.Equal(t, "Chamo-me Ana", msgs[1].Text)
	assert.True(t, strings.HasSuffix(f.chat.sent[1], "]\nChamo-me Ana"))

	done, err := f.session.CompleteStep()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 1, f.profile.Progress.CurrentStepIndex)
}

func TestSend_EmptyReply(t *testing.T) {
	f := newFixture(t, "Olá", "")
	_, err := f.session.Start(context.Background())
	require.NoError(t, err)

	_, err = f.session.Send(context.Background(), "?")
	require.NoError(t, err)
	msgs := f.session.Messages()
	assert.Equal(t, EmptyReply, msgs[len(msgs)-1].Text)
}

func TestSend_BeforeStart(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Send(context.Background(), "olá")
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestSendVoice(t *testing.T) {
	f := newFixture(t, "Olá", "Good pronunciation!\nBom dia.\nAgain?")
	_, err := f.session.Start(context.Background())
	require.NoError(t, err)

	_, err = f.session.SendVoice(context.Background(), []byte("RIFF"), "audio/wav")
	require.NoError(t, err)

	msgs := f.session.Messages()
	assert.Equal(t, VoiceMessageText, msgs[1].Text)
	assert.Equal(t, "[VOICE_INPUT] User is level English. Respond in English only.", f.chat.sent[1])
	assert.Equal(t, []byte("RIFF"), f.chat.audio[0])
}

func TestQuotaDuringSpeechMutesVoice(t *testing.T) {
	f := newFixture(t, "Olá [XP: 10]", "Muito bem")
	f.speaker.quota = f.cooldown
	_, err := f.session.Start(context.Background())
	require.NoError(t, err)

	assert.True(t, f.session.Muted())
	require.Len(t, f.notices, 1)
	assert.True(t, f.notices[0].Quota)
	assert.Equal(t, "O limite de voz da conta gratuita foi atingido. Voz desativada por 3 min.", f.notices[0].Message)

	_, err = f.session.Send(context.Background(), "ok")
	require.NoError(t, err)
	assert.Len(t, f.speaker.texts, 1, "muted sessions do not synthesize")

	n, ok := f.session.Notice()
	assert.True(t, ok)
	assert.Equal(t, f.notices[0], n)
	assert.Contains(t, f.session.ListenLabel(0), "VOZ MUTADA (")
}

func TestChatQuotaTripsVoiceCooldown(t *testing.T) {
	f := newFixture(t)
	f.chat.errs = []error{errors.New("429 Resource has been exhausted")}
	_, err := f.session.Start(context.Background())

	require.Error(t, err)
	assert.True(t, resilience.IsQuota(err))
	assert.True(t, f.cooldown.OnCooldown())
	assert.Len(t, f.chat.sent, 1, "quota errors are not retried")
}

func TestRetryVoice(t *testing.T) {
	f := newFixture(t, "Bom dia")
	_, err := f.session.Start(context.Background())
	require.NoError(t, err)

	f.cooldown.trip()
	require.NoError(t, f.session.RetryVoice(context.Background(), 0))
	require.NotEmpty(t, f.notices)
	assert.True(t, strings.HasPrefix(f.notices[len(f.notices)-1].Message, "Voz temporariamente indisponível. Tenta em "))
	assert.Len(t, f.speaker.texts, 1)

	f.cooldown.until = time.Time{}
	f.session.SetMuted(true)
	require.NoError(t, f.session.RetryVoice(context.Background(), 0))
	assert.False(t, f.session.Muted(), "retry unmutes once the cooldown is over")
	assert.Len(t, f.speaker.texts, 2)

	assert.ErrorIs(t, f.session.RetryVoice(context.Background(), 7), ErrNoSuchReply)
}

func TestRetryVoice_QuotaNotice(t *testing.T) {
	f := newFixture(t, "Bom dia")
	_, err := f.session.Start(context.Background())
	require.NoError(t, err)

	f.speaker.quota = f.cooldown
	require.NoError(t, f.session.RetryVoice(context.Background(), 0))
	assert.True(t, f.session.Muted())
	assert.Equal(t, "Voz indisponível. O limite gratuito foi atingido. Voz desativada por 3 min.", f.notices[len(f.notices)-1].Message)
}

func TestOtherSpeechErrors(t *testing.T) {
	f := newFixture(t, "Bom dia")
	f.speaker.err = errors.New("boom")
	_, err := f.session.Start(context.Background())
	require.NoError(t, err)

	assert.False(t, f.session.Muted())
	require.Len(t, f.notices, 1)
	assert.Equal(t, Notice{Message: "Erro ao carregar voz."}, f.notices[0])
}

func TestCooldownWhileWaitingIsSilent(t *testing.T) {
	f := newFixture(t, "Bom dia")
	f.speaker.err = fmt.Errorf("acquire: %w", speech.ErrCooldown)
	out, err := f.session.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, out.Index)
	assert.Len(t, f.speaker.texts, 1)
	assert.Empty(t, f.notices)
	assert.False(t, f.session.Muted())
	_, ok := f.session.Notice()
	assert.False(t, ok)
	assert.False(t, f.sched.Playing())
}

func TestStopAudio(t *testing.T) {
	f := newFixture(t, "Bom dia")
	_, err := f.session.Start(context.Background())
	require.NoError(t, err)
	require.True(t, f.sched.Playing())

	before := f.sched.Session()
	f.session.StopAudio()
	assert.False(t, f.sched.Playing())
	assert.Equal(t, before+1, f.sched.Session())
	assert.Equal(t, "OUVIR", f.session.ListenLabel(0))
}

func TestPlaybackEndClearsSpeaking(t *testing.T) {
	f := newFixture(t, "Bom dia")
	_, err := f.session.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "A FALAR...", f.session.ListenLabel(0))
	f.out.Advance(time.Second)
	assert.Equal(t, "OUVIR", f.session.ListenLabel(0))
}

func TestParseXP(t *testing.T) {
	text, xp := ParseXP("Muito bem! [XP: 15] [XP: 5]")
	assert.Equal(t, "Muito bem!", text)
	assert.Equal(t, 15, xp)

	text, xp = ParseXP("Sem pontos")
	assert.Equal(t, "Sem pontos", text)
	assert.Zero(t, xp)
}

func TestPortuguesePhrase(t *testing.T) {
	assert.Equal(t, "Como se chama?", PortuguesePhrase("Great!\n\nComo se chama?\nYour turn."))
	assert.Equal(t, "Bom dia", PortuguesePhrase("Bom dia"))
	assert.Equal(t, "", PortuguesePhrase("  \n "))
}
