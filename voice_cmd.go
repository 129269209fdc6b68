package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/lusa-tutor/lusa/internal/audio"
	"github.com/lusa-tutor/lusa/internal/live"
	"github.com/spf13/cobra"
)

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Talk with your tutor live",
	Long: paragraph(fmt.Sprintf("\nStart a %s with your tutor. The microphone is read with the recorder "+
		"command from the config file. Press Ctrl-C to stop.", keyword("live voice conversation"))),
	Args: cobra.NoArgs,
	RunE: runVoice,
}

func runVoice(*cobra.Command, []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	a, err := newApp(ctx, needs{playback: true})
	if err != nil {
		return err
	}
	defer a.Close()
	if a.player == nil {
		return errors.New("no audio output device available")
	}

	rec := audio.NewRecorder(cfg.Audio.RecorderCommand)
	mic, err := rec.Start(ctx)
	if err != nil {
		return fmt.Errorf("unable to start microphone: %w", err)
	}
	defer rec.Stop() //nolint:errcheck

	p := a.account.Profile
	c := p.Character()
	sess := live.NewSession(a.liveDialer(), a.player, c, p.NativeLanguage, p.Level,
		live.WithChunkSamples(cfg.Audio.ChunkSamples))

	name := characterStyle(c.Color).Render(c.Name)
	speaking := false
	sess.OnTranscript = func(text string) {
		if !speaking {
			fmt.Print(name + ": ")
			speaking = true
		}
		fmt.Print(text)
	}
	sess.OnTurnComplete = func() {
		if speaking {
			fmt.Println()
		}
		speaking = false
	}

	if err := sess.Start(ctx, mic); err != nil {
		return err
	}
	fmt.Println(faint("A ouvir... Ctrl-C para terminar."))

	select {
	case <-ctx.Done():
	case <-sess.Done():
	}
	if err := sess.Stop(); err != nil {
		return err
	}
	if err := sess.Err(); err != nil {
		return fmt.Errorf("live session ended: %w", err)
	}
	fmt.Println()
	return nil
}
