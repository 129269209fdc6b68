// Package main provides the entry point for the lusa CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/lusa-tutor/lusa/internal/config"
	"github.com/lusa-tutor/lusa/internal/observability"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile  string
	debug       bool
	metricsAddr string

	// cfg is loaded before any subcommand runs.
	cfg config.Config

	stopMetrics context.CancelFunc = func() {}

	rootCmd = &cobra.Command{
		Use:   "lusa",
		Short: "Learn European Portuguese with AI tutors",
		Long: paragraph(
			fmt.Sprintf("\nLearn European Portuguese %s, one lesson at a time.", keyword("with a tutor from Lisbon")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			stopMetrics()
		},
	}
)

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file %s: %w", configFile, err)
		}
	}

	var err error
	cfg, err = config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug("Configuration loaded", "command", cmd.Name(), "file", viper.ConfigFileUsed())

	if cfg.Metrics.Addr != "" {
		ctx, cancel := context.WithCancel(context.Background())
		stopMetrics = cancel
		go func() {
			if err := observability.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Error("Metrics server failed", "addr", cfg.Metrics.Addr, "err", err)
			}
		}()
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn("Could not load .env file", "err", err)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug output to the log file")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	// Config bindings
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("metrics.addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))

	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(
		configCmd, manCmd,
		accountCmd, profileCmd, pathCmd, charactersCmd,
		lessonCmd, voiceCmd, cacheCmd,
	)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, config.Name)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, config.Name)}, dirs...)
	}

	if c := os.Getenv("LUSA_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(config.Name)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(config.Name)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		configFile = used
		return
	}

	configFile = filepath.Join(dirs[0], config.Name+".yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
