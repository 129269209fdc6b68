// Package gemini adapts the Gemini API to the tutor: chat sessions, speech
// synthesis and live bidirectional audio.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"google.golang.org/genai"
)

// Default models.
const (
	DefaultChatModel = "gemini-flash-latest"
	DefaultTTSModel  = "gemini-2.5-flash-preview-tts"
	DefaultLiveModel = "gemini-2.5-flash-native-audio-preview-12-2025"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no Gemini API key configured (set GEMINI_API_KEY)")

// Config configures a Client.
type Config struct {
	APIKey     string
	ChatModel  string
	TTSModel   string
	LiveModel  string
	BaseURL    string // overrides the API endpoint
	HTTPClient *http.Client
}

// Client talks to the Gemini API.
type Client struct {
	genai  *genai.Client
	config Config
	logger *log.Logger
}

// NewClient creates a client for the Gemini API backend.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = DefaultTTSModel
	}
	if cfg.LiveModel == "" {
		cfg.LiveModel = DefaultLiveModel
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{genai: c, config: cfg, logger: log.Default().WithPrefix("gemini")}, nil
}

// Chat is a multi-turn conversation with a fixed system instruction.
type Chat struct {
	chat   *genai.Chat
	logger *log.Logger
}

// NewChat starts a conversation.
func (c *Client) NewChat(ctx context.Context, systemInstruction string) (*Chat, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}
	chat, err := c.genai.Chats.Create(ctx, c.config.ChatModel, cfg, nil)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Chat created", "model", c.config.ChatModel)
	return &Chat{chat: chat, logger: c.logger}, nil
}

// Send sends a text turn and returns the reply text.
func (ch *Chat) Send(ctx context.Context, text string) (string, error) {
	resp, err := ch.chat.Send(ctx, genai.NewPartFromText(text))
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// SendAudio sends a prompt with recorded audio and returns the reply text.
func (ch *Chat) SendAudio(ctx context.Context, prompt string, audio []byte, mimeType string) (string, error) {
	resp, err := ch.chat.Send(ctx, genai.NewPartFromText(prompt), genai.NewPartFromBytes(audio, mimeType))
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Generate synthesizes text with a prebuilt voice. It returns 24 kHz mono
// 16-bit PCM, or nil when the response carries no audio.
func (c *Client) Generate(ctx context.Context, text, voice string) ([]byte, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}
	resp, err := c.genai.Models.GenerateContent(ctx, c.config.TTSModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, err
	}
	return firstInlineData(resp), nil
}

func firstInlineData(resp *genai.GenerateContentResponse) []byte {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return nil
	}
	part := content.Parts[0]
	if part == nil || part.InlineData == nil {
		return nil
	}
	return part.InlineData.Data
}
