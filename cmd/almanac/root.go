// Root command for the almanac CLI.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/almanac/pkg/almanac"
)

// Global flag values.
var (
	flagConfigDir string
	flagDB        string
	flagDriver    string
	flagJSON      bool
	flagVerbose   bool
)

// loadedConfig holds the viper instance from config.yaml, set by
// PersistentPreRunE so all subcommands can read it.
var loadedConfig = newDefaultConfig()

var rootCmd = &cobra.Command{
	Use:     "almanac",
	Short:   "Almanac is a collection store for calendars and address books",
	Version: almanac.Version,
	Long: `Almanac stores calendar and address-book collections with per-collection
change history, so sync clients can ask "what changed since token N" and
derived calendars such as contact birthdays stay current automatically.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}
		loadedConfig, err = loadConfig(configDir)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: $(CWD)/.almanac)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database DSN (default: $(CWD)/.almanac/almanac.db)")
	rootCmd.PersistentFlags().StringVar(&flagDriver, "driver", "", "database driver: sqlite or postgres (default: sqlite)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(mkcolCmd)
	rootCmd.AddCommand(rmcolCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(propsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(changesCmd)
	rootCmd.AddCommand(birthdaysCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(loadCmd)
}

// newLogger builds the CLI logger. Debug level is gated on --verbose.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
