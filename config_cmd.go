package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# write debug output to the log file
debug: false

# provider models
models:
  chat: "gemini-flash-latest"
  tts: "gemini-2.5-flash-preview-tts"
  live: "gemini-2.5-flash-native-audio-preview-12-2025"

# spoken replies
speech:
  enabled: true
  # minimum time between two synthesis requests
  spacing: 3s
  # voice pause after the free quota is exhausted
  cooldown: 180s
  # attempts for server errors, with doubling backoff
  max_attempts: 4
  base_backoff: 4s
  jitter: 1s

# playback and microphone
audio:
  device_rate: 48000
  # delay before the first reply chunk starts
  lead: 50ms
  # 16 kHz mono 16-bit PCM on stdout
  recorder: "arecord -q -t raw -f S16_LE -c 1 -r 16000"

# synthesized voice cache
cache:
  # dir: "~/.cache/lusa/voice"
  memory_mb: 32
  disk_mb: 256
  compression_level: 3
  ttl: 168h

# account database
# store:
#   path: "~/.local/share/lusa/lusa.db"

# serve Prometheus metrics, e.g. ":9090"
metrics:
  addr: ""

# publish progress events to NATS (or set LUSA_NATS_URL)
events:
  nats_url: ""
  subject: "lusa.progress"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the lusa config file",
	Long:    paragraph(fmt.Sprintf("\n%s the lusa config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("lusa config\nlusa config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Lusa", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
