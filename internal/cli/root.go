// Package cli is the command-line collaborator of the playback core. It
// parses arguments, wires the player together and maps the core's error
// taxonomy to process exit codes; no playback logic lives here.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tonearm/internal/config"
	"tonearm/internal/logger"
	"tonearm/internal/store"
	errs "tonearm/pkg/errors"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "tonearm",
	Short:         "tonearm is a local music player with a persistent library",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if err := cfg.EnsureDataDir(); err != nil {
			return fmt.Errorf("prepare data dir: %w", err)
		}
		logger.Init(logger.Config{
			Level:   cfg.LogLevel,
			Path:    cfg.LogPath,
			Console: cfg.LogConsole,
		})
		return nil
	},
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tonearm: %v\n", err)
		return errs.ExitCode(err)
	}
	return errs.ExitOK
}

// openStore opens the library database configured for this invocation.
func openStore() (*store.Store, error) {
	return store.Open(cfg.DBPath)
}
