// Root command for the pantry CLI.
package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pantry/internal/paths"
	"github.com/mesh-intelligence/pantry/pkg/pantry"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagBackend   string
	flagVerbose   bool
)

// Values loaded from config.yaml by PersistentPreRunE so all subcommands can
// use them.
var (
	configDataDir string
	configBackend string
)

var rootCmd = &cobra.Command{
	Use:     "pantry",
	Short:   "Pantry is a schema-driven object store",
	Version: pantry.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})))

		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}

		cfg, err := loadConfig(configDir)
		if err != nil {
			return err
		}

		configDataDir = cfg.GetString(cfgKeyDataDir)
		configBackend = cfg.GetString(cfgKeyBackend)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: $(CWD)/.pantry)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $(CWD)/.pantry-db)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "storage backend: memory, sqlite, or bolt (default: config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(typesCmd)
}

// resolveDataDir returns the data directory path following the precedence:
// --data-dir flag > config.yaml data_dir > PANTRY_DATA_DIR env > default
// $(CWD)/.pantry-db.
func resolveDataDir() (string, error) {
	return paths.ResolveDataDir(flagDataDir, configDataDir)
}

// resolveConfigDir returns the configuration directory following the
// precedence: --config-dir flag > PANTRY_CONFIG_DIR env > DefaultConfigDir().
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}

// resolveBackend returns the backend name following the precedence:
// --backend flag > config.yaml backend > default sqlite.
func resolveBackend() string {
	if flagBackend != "" {
		return flagBackend
	}
	if configBackend != "" {
		return configBackend
	}
	return defaultBackend
}
