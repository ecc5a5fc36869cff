// Package cli implements the canvas command line client.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/canvaschat/internal/config"
	logpkg "github.com/vovakirdan/canvaschat/internal/log"
	"github.com/vovakirdan/canvaschat/internal/store/sqlite"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	ServerURL  string
}

// NewRootCommand creates the root command for the canvas client.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "canvas",
		Short: "Ephemeral text on a shared canvas",
		Long: `canvas joins a room on a shared 2D plane where participants drop
short text messages that fade out a few seconds after their last edit.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file path (default: $CANVAS_CONFIG_DEFAULT_PATH or ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (trace|debug|info|warn|error|off)")
	cmd.PersistentFlags().StringVar(&opts.ServerURL, "server", "", "room channel websocket URL")

	cmd.AddCommand(NewJoinCommand(opts))
	cmd.AddCommand(NewIdentityCommand(opts))
	cmd.AddCommand(NewRoomsCommand(opts))

	return cmd
}

// environment is what every command needs: resolved configuration, a
// logger and the local profile.
type environment struct {
	cfg     config.Config
	log     *zerolog.Logger
	profile *sqlite.SQLiteStore
}

func (e *environment) Close() {
	if err := e.profile.Close(); err != nil {
		e.log.Warn().Err(err).Msg("close profile store")
	}
}

// loadEnvironment loads configuration, applies flag overrides and opens the
// profile store.
func loadEnvironment(opts *RootOptions, overrides config.Config, errOut io.Writer) (*environment, error) {
	bootstrap := logpkg.NewWithWriter(opts.LogLevel, errOut)

	cfg, path, err := config.Load(bootstrap, opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	overrides.ServerURL = opts.ServerURL
	overrides.LogLevel = opts.LogLevel
	cfg.UpdateFrom(overrides)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logpkg.NewWithWriter(cfg.LogLevel, errOut)
	logger.Debug().Str("path", path).Str("room", cfg.Room).Msg("configuration loaded")

	if dir := filepath.Dir(cfg.ProfilePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create profile dir: %w", err)
		}
	}
	profile, err := sqlite.New(cfg.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("open profile: %w", err)
	}

	return &environment{cfg: cfg, log: logger, profile: profile}, nil
}
