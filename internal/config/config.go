// Package config builds the validated runtime configuration from the
// config file, the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/lusa-tutor/lusa/internal/cache"
	"github.com/lusa-tutor/lusa/internal/gemini"
	"github.com/lusa-tutor/lusa/internal/resilience"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// Name is the application name used for config, data and cache paths.
const Name = "lusa"

// SampleRates lists the accepted audio sample rates.
var SampleRates = []int{16000, 22050, 24000, 44100, 48000}

// Config is the complete runtime configuration.
type Config struct {
	APIKey string
	Debug  bool

	Models  Models
	Speech  Speech
	Audio   Audio
	Cache   Cache
	Store   Store
	Metrics Metrics
	Events  Events
}

// Models names the provider models.
type Models struct {
	Chat string
	TTS  string
	Live string
}

// Speech configures synthesis pacing and retries.
type Speech struct {
	Enabled     bool
	Spacing     time.Duration
	Cooldown    time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      time.Duration
}

// Audio configures playback and capture.
type Audio struct {
	OutputRate      int
	DeviceRate      int
	InputRate       int
	ChunkSamples    int
	Lead            time.Duration
	RecorderCommand string
}

// Cache configures the synthesized clip cache.
type Cache struct {
	Dir              string
	MemoryMB         int
	DiskMB           int
	CompressionLevel int
	TTL              time.Duration
}

// Store configures the account database.
type Store struct {
	Path string
}

// Metrics configures the Prometheus exporter. An empty Addr disables it.
type Metrics struct {
	Addr string
}

// Events configures progress publishing. An empty NATSURL disables it.
type Events struct {
	NATSURL string
	Subject string
}

// secrets are read from the environment only.
type secrets struct {
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	APIKey       string `env:"API_KEY"`
	NATSURL      string `env:"LUSA_NATS_URL"`
}

// Default returns the built-in configuration.
func Default() Config {
	scope := gap.NewScope(gap.User, Name)

	var dataDir string
	if dirs, err := scope.DataDirs(); err == nil && len(dirs) > 0 {
		dataDir = dirs[0]
	}
	cacheDir, _ := scope.CacheDir()

	return Config{
		Models: Models{
			Chat: gemini.DefaultChatModel,
			TTS:  gemini.DefaultTTSModel,
			Live: gemini.DefaultLiveModel,
		},
		Speech: Speech{
			Enabled:     true,
			Spacing:     3 * time.Second,
			Cooldown:    180 * time.Second,
			MaxAttempts: 4,
			BaseBackoff: 4 * time.Second,
			Jitter:      time.Second,
		},
		Audio: Audio{
			OutputRate:      24000,
			DeviceRate:      48000,
			InputRate:       16000,
			ChunkSamples:    4096,
			Lead:            50 * time.Millisecond,
			RecorderCommand: "arecord -q -t raw -f S16_LE -c 1 -r 16000",
		},
		Cache: Cache{
			Dir:              filepath.Join(cacheDir, "voice"),
			MemoryMB:         32,
			DiskMB:           256,
			CompressionLevel: 3,
			TTL:              7 * 24 * time.Hour,
		},
		Store:  Store{Path: filepath.Join(dataDir, Name+".db")},
		Events: Events{Subject: "lusa.progress"},
	}
}

// SetDefaults registers the defaults with v so they show up in
// v.AllSettings and can be overridden by flags.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("debug", false)
	v.SetDefault("models.chat", d.Models.Chat)
	v.SetDefault("models.tts", d.Models.TTS)
	v.SetDefault("models.live", d.Models.Live)
	v.SetDefault("speech.enabled", d.Speech.Enabled)
	v.SetDefault("speech.spacing", d.Speech.Spacing)
	v.SetDefault("speech.cooldown", d.Speech.Cooldown)
	v.SetDefault("speech.max_attempts", d.Speech.MaxAttempts)
	v.SetDefault("speech.base_backoff", d.Speech.BaseBackoff)
	v.SetDefault("speech.jitter", d.Speech.Jitter)
	v.SetDefault("audio.output_rate", d.Audio.OutputRate)
	v.SetDefault("audio.device_rate", d.Audio.DeviceRate)
	v.SetDefault("audio.input_rate", d.Audio.InputRate)
	v.SetDefault("audio.chunk_samples", d.Audio.ChunkSamples)
	v.SetDefault("audio.lead", d.Audio.Lead)
	v.SetDefault("audio.recorder", d.Audio.RecorderCommand)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.memory_mb", d.Cache.MemoryMB)
	v.SetDefault("cache.disk_mb", d.Cache.DiskMB)
	v.SetDefault("cache.compression_level", d.Cache.CompressionLevel)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.subject", d.Events.Subject)
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are ignored. Variables already set are kept.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the configuration from v and the environment and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()

	cfg.Debug = v.GetBool("debug")

	if v.IsSet("models.chat") {
		cfg.Models.Chat = v.GetString("models.chat")
	}
	if v.IsSet("models.tts") {
		cfg.Models.TTS = v.GetString("models.tts")
	}
	if v.IsSet("models.live") {
		cfg.Models.Live = v.GetString("models.live")
	}

	if v.IsSet("speech.enabled") {
		cfg.Speech.Enabled = v.GetBool("speech.enabled")
	}
	if v.IsSet("speech.spacing") {
		cfg.Speech.Spacing = v.GetDuration("speech.spacing")
	}
	if v.IsSet("speech.cooldown") {
		cfg.Speech.Cooldown = v.GetDuration("speech.cooldown")
	}
	if v.IsSet("speech.max_attempts") {
		cfg.Speech.MaxAttempts = v.GetInt("speech.max_attempts")
	}
	if v.IsSet("speech.base_backoff") {
		cfg.Speech.BaseBackoff = v.GetDuration("speech.base_backoff")
	}
	if v.IsSet("speech.jitter") {
		cfg.Speech.Jitter = v.GetDuration("speech.jitter")
	}

	if v.IsSet("audio.output_rate") {
		cfg.Audio.OutputRate = v.GetInt("audio.output_rate")
	}
	if v.IsSet("audio.device_rate") {
		cfg.Audio.DeviceRate = v.GetInt("audio.device_rate")
	}
	if v.IsSet("audio.input_rate") {
		cfg.Audio.InputRate = v.GetInt("audio.input_rate")
	}
	if v.IsSet("audio.chunk_samples") {
		cfg.Audio.ChunkSamples = v.GetInt("audio.chunk_samples")
	}
	if v.IsSet("audio.lead") {
		cfg.Audio.Lead = v.GetDuration("audio.lead")
	}
	if v.IsSet("audio.recorder") {
		cfg.Audio.RecorderCommand = v.GetString("audio.recorder")
	}

	if v.IsSet("cache.dir") {
		cfg.Cache.Dir = v.GetString("cache.dir")
	}
	if v.IsSet("cache.memory_mb") {
		cfg.Cache.MemoryMB = v.GetInt("cache.memory_mb")
	}
	if v.IsSet("cache.disk_mb") {
		cfg.Cache.DiskMB = v.GetInt("cache.disk_mb")
	}
	if v.IsSet("cache.compression_level") {
		cfg.Cache.CompressionLevel = v.GetInt("cache.compression_level")
	}
	if v.IsSet("cache.ttl") {
		cfg.Cache.TTL = v.GetDuration("cache.ttl")
	}

	if v.IsSet("store.path") {
		cfg.Store.Path = v.GetString("store.path")
	}
	cfg.Metrics.Addr = v.GetString("metrics.addr")
	cfg.Events.NATSURL = v.GetString("events.nats_url")
	if v.IsSet("events.subject") {
		cfg.Events.Subject = v.GetString("events.subject")
	}

	sec, err := env.ParseAs[secrets]()
	if err != nil {
		return cfg, fmt.Errorf("error parsing environment: %w", err)
	}
	cfg.APIKey = sec.GeminiAPIKey
	if cfg.APIKey == "" {
		cfg.APIKey = sec.APIKey
	}
	if sec.NATSURL != "" {
		cfg.Events.NATSURL = sec.NATSURL
	}

	if cfg.Cache.Dir, err = expandPath(cfg.Cache.Dir); err != nil {
		return cfg, err
	}
	if cfg.Store.Path, err = expandPath(cfg.Store.Path); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func expandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", p, err)
	}
	return expanded, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Speech.Spacing <= 0 {
		return fmt.Errorf("speech spacing must be positive, got %s", c.Speech.Spacing)
	}
	if c.Speech.Cooldown <= 0 {
		return fmt.Errorf("speech cooldown must be positive, got %s", c.Speech.Cooldown)
	}
	if c.Speech.MaxAttempts <= 0 {
		return fmt.Errorf("speech max_attempts must be positive, got %d", c.Speech.MaxAttempts)
	}
	if c.Speech.BaseBackoff < 0 || c.Speech.Jitter < 0 {
		return errors.New("speech backoff and jitter must not be negative")
	}

	for name, rate := range map[string]int{
		"output_rate": c.Audio.OutputRate,
		"device_rate": c.Audio.DeviceRate,
		"input_rate":  c.Audio.InputRate,
	} {
		if !slices.Contains(SampleRates, rate) {
			return fmt.Errorf("audio %s must be one of %v, got %d", name, SampleRates, rate)
		}
	}
	if c.Audio.ChunkSamples <= 0 {
		return fmt.Errorf("audio chunk_samples must be positive, got %d", c.Audio.ChunkSamples)
	}
	if c.Audio.Lead < 0 {
		return fmt.Errorf("audio lead must not be negative, got %s", c.Audio.Lead)
	}

	if c.Cache.MemoryMB < 1 || c.Cache.MemoryMB > 10000 {
		return fmt.Errorf("cache memory_mb must be between 1 and 10000 MB, got %d", c.Cache.MemoryMB)
	}
	if c.Cache.DiskMB < 1 || c.Cache.DiskMB > 10000 {
		return fmt.Errorf("cache disk_mb must be between 1 and 10000 MB, got %d", c.Cache.DiskMB)
	}
	if c.Cache.CompressionLevel < 0 || c.Cache.CompressionLevel > 4 {
		return fmt.Errorf("cache compression_level must be between 0 and 4, got %d", c.Cache.CompressionLevel)
	}

	if c.Store.Path == "" {
		return errors.New("store path must not be empty")
	}
	return nil
}

// RetryConfig is the provider retry policy.
func (c Config) RetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts: c.Speech.MaxAttempts,
		BaseBackoff: c.Speech.BaseBackoff,
		Jitter:      c.Speech.Jitter,
	}
}

// CacheConfig is the clip store configuration.
func (c Config) CacheConfig() cache.Config {
	cc := cache.DefaultConfig()
	cc.Dir = c.Cache.Dir
	cc.MemoryCapacity = int64(c.Cache.MemoryMB) * 1024 * 1024
	cc.DiskCapacity = int64(c.Cache.DiskMB) * 1024 * 1024
	cc.CompressionLevel = c.Cache.CompressionLevel
	cc.TTL = c.Cache.TTL
	return cc
}

// GeminiConfig is the provider client configuration.
func (c Config) GeminiConfig() gemini.Config {
	return gemini.Config{
		APIKey:    c.APIKey,
		ChatModel: c.Models.Chat,
		TTSModel:  c.Models.TTS,
		LiveModel: c.Models.Live,
	}
}
