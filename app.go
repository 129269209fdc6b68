package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/lusa-tutor/lusa/internal/audio"
	"github.com/lusa-tutor/lusa/internal/cache"
	"github.com/lusa-tutor/lusa/internal/events"
	"github.com/lusa-tutor/lusa/internal/gemini"
	"github.com/lusa-tutor/lusa/internal/lesson"
	"github.com/lusa-tutor/lusa/internal/live"
	"github.com/lusa-tutor/lusa/internal/profile"
	"github.com/lusa-tutor/lusa/internal/resilience"
	"github.com/lusa-tutor/lusa/internal/speech"
	"github.com/lusa-tutor/lusa/internal/store"
)

// app holds the long-lived services a command needs. Fields that a
// command did not ask for stay nil.
type app struct {
	store   *store.Store
	account *store.Account

	client  *gemini.Client
	retrier *resilience.Retrier
	clips   *cache.Store
	synth   *speech.Synthesizer
	events  events.Publisher

	device *audio.Device
	player *audio.Scheduler
}

// openStore opens the account database.
func openStore() (*store.Store, error) {
	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open account database: %w", err)
	}
	return s, nil
}

// needs says which optional services a command uses.
type needs struct {
	speech   bool // synthesizer and clip cache
	playback bool // audio device and scheduler
	lead     bool // delay the first buffer after silence
}

// newApp opens the store and the logged-in account, then connects the
// provider and whatever else n asks for. A missing audio device only
// disables speech.
func newApp(ctx context.Context, n needs) (*app, error) {
	a := &app{}
	var err error

	if a.store, err = openStore(); err != nil {
		return nil, err
	}
	if a.account, err = a.store.Accounts.Current(); err != nil {
		_ = a.store.Close()
		if errors.Is(err, store.ErrNotLoggedIn) {
			return nil, errors.New("not logged in: run `lusa account login` or `lusa account signup` first")
		}
		return nil, err
	}

	if a.client, err = gemini.NewClient(ctx, cfg.GeminiConfig()); err != nil {
		a.Close()
		if errors.Is(err, gemini.ErrNoAPIKey) {
			return nil, errors.New("no API key: set GEMINI_API_KEY (or API_KEY) in the environment or a .env file")
		}
		return nil, err
	}

	// Chat and speech share one retrier so a chat quota error also mutes
	// the voice.
	a.retrier = resilience.NewRetrier(cfg.RetryConfig())

	if a.events, err = events.New(cfg.Events.NATSURL, cfg.Events.Subject); err != nil {
		log.Warn("Progress events disabled", "err", err)
		a.events = events.Nop{}
	}

	if n.speech && cfg.Speech.Enabled {
		if a.clips, err = cache.Open(cfg.CacheConfig()); err != nil {
			log.Warn("Voice cache disabled", "err", err)
			a.clips = nil
		}
		throttle := speech.NewThrottle(cfg.Speech.Spacing, cfg.Speech.Cooldown)
		var opts []speech.SynthesizerOption
		if a.clips != nil {
			opts = append(opts, speech.WithCache(a.clips))
		}
		a.synth = speech.NewSynthesizer(a.client, throttle, a.retrier, opts...)
	}

	if !n.playback || (n.speech && a.synth == nil) {
		return a, nil
	}

	devCfg := audio.DefaultDeviceConfig()
	devCfg.SampleRate = cfg.Audio.DeviceRate
	if a.device, err = audio.NewDevice(devCfg); err != nil {
		log.Warn("Audio output unavailable", "err", err)
		a.synth = nil
		return a, nil
	}

	schedOpts := []audio.SchedulerOption{audio.WithSampleRate(cfg.Audio.OutputRate)}
	if n.lead {
		schedOpts = append(schedOpts, audio.WithLead(cfg.Audio.Lead))
	}
	a.player = audio.NewScheduler(a.device, schedOpts...)
	return a, nil
}

// saveProfile stores p as the logged-in learner's profile.
func (a *app) saveProfile(p *profile.Profile) error {
	return a.store.Accounts.UpdateProfile(a.account.Email, p)
}

// publish sends a progress event, logging failures.
func (a *app) publish(ctx context.Context, ev events.Event) {
	if a.events == nil {
		return
	}
	ev.Email = a.account.Email
	if err := a.events.Publish(ctx, ev); err != nil {
		log.Warn("Could not publish progress event", "type", ev.Type, "err", err)
	}
}

// chatFactory adapts the provider client to the lesson session.
func (a *app) chatFactory() lesson.ChatFactory {
	return func(ctx context.Context, instruction string) (lesson.Chat, error) {
		chat, err := a.client.NewChat(ctx, instruction)
		if err != nil {
			return nil, err
		}
		return chat, nil
	}
}

// liveDialer adapts the provider client to the live session.
func (a *app) liveDialer() live.Dialer {
	return func(ctx context.Context, lc gemini.LiveConfig) (live.Conn, error) {
		conn, err := a.client.Connect(ctx, lc)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Close releases everything newApp opened.
func (a *app) Close() {
	if a.player != nil {
		a.player.Stop()
	}
	if a.device != nil {
		if err := a.device.Close(); err != nil {
			log.Warn("Could not close audio device", "err", err)
		}
	}
	if a.clips != nil {
		if err := a.clips.Close(); err != nil {
			log.Warn("Could not close voice cache", "err", err)
		}
	}
	if a.events != nil {
		_ = a.events.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn("Could not close account database", "err", err)
		}
	}
}
