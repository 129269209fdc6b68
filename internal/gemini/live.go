package gemini

import (
	"context"

	"google.golang.org/genai"
)

// InputMIMEType labels microphone audio sent to a live session.
const InputMIMEType = "audio/pcm;rate=16000"

// LiveConfig configures a live voice connection.
type LiveConfig struct {
	SystemInstruction string
	Voice             string
}

// LiveEvent is the tutor-relevant content of one server message.
type LiveEvent struct {
	Audio        [][]byte
	Transcript   string
	TurnComplete bool
	Interrupted  bool
}

// LiveConn is an open live voice connection.
type LiveConn struct {
	session *genai.Session
}

// Connect opens a live session that answers in audio and transcribes its
// own speech.
func (c *Client) Connect(ctx context.Context, cfg LiveConfig) (*LiveConn, error) {
	conf := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		},
		SystemInstruction:        genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser),
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	session, err := c.genai.Live.Connect(ctx, c.config.LiveModel, conf)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Live session connected", "model", c.config.LiveModel, "voice", cfg.Voice)
	return &LiveConn{session: session}, nil
}

// SendAudio streams one chunk of 16 kHz 16-bit PCM.
func (l *LiveConn) SendAudio(pcm []byte) error {
	return l.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: pcm, MIMEType: InputMIMEType},
	})
}

// Receive blocks for the next server message.
func (l *LiveConn) Receive() (LiveEvent, error) {
	msg, err := l.session.Receive()
	if err != nil {
		return LiveEvent{}, err
	}
	return toLiveEvent(msg), nil
}

func toLiveEvent(msg *genai.LiveServerMessage) LiveEvent {
	var ev LiveEvent
	if msg == nil || msg.ServerContent == nil {
		return ev
	}
	sc := msg.ServerContent
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				ev.Audio = append(ev.Audio, part.InlineData.Data)
			}
		}
	}
	if sc.OutputTranscription != nil {
		ev.Transcript = sc.OutputTranscription.Text
	}
	ev.TurnComplete = sc.TurnComplete
	ev.Interrupted = sc.Interrupted
	return ev
}

// Close ends the session.
func (l *LiveConn) Close() error {
	return l.session.Close()
}
