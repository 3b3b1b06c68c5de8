// Package app provides the commands of the tracker binary.
package app

import (
	"encoding/json"
	"fmt"
	"runtime"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/coattosintetico/termux-gps-tracker/internal/config"
)

// Set at build time with -ldflags "-X .../app.Version=..."
var (
	Version = "0.1.0"
	Commit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:               "tracker",
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	Short:             "Record GPS tracks on a Termux device",
	Long: `tracker samples the Termux:API location provider at a fixed interval and
appends every reading to a GeoJSON document under the records directory.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var setupRoot sync.Once

// NewRootCmd returns the root command with every subcommand attached. It is
// safe to call more than once.
func NewRootCmd() *cobra.Command {
	setupRoot.Do(func() {
		rootCmd.PersistentFlags().String("records-dir", config.DefaultConfig().Record.RecordsDir,
			"Directory holding the recorded documents")
		bindFlag(config.KeyRecordRecordsDir, rootCmd.PersistentFlags().Lookup("records-dir"))

		rootCmd.AddCommand(recordCmd)
		rootCmd.AddCommand(transferCmd)
		rootCmd.AddCommand(summaryCmd)
		rootCmd.AddCommand(runsCmd)
		rootCmd.AddCommand(versionCmd)
	})

	return rootCmd
}

// loadConfig merges defaults, environment and flags
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := map[string]string{
			"version":  Version,
			"commit":   Commit,
			"go":       runtime.Version(),
			"platform": runtime.GOOS + "/" + runtime.GOARCH,
		}

		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return fmt.Errorf("failed to get format flag: %w", err)
		}

		if format == "json" {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to format version info: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(output))
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "tracker %s (commit %s, %s, %s)\n",
			info["version"], info["commit"], info["go"], info["platform"])
		return nil
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}

// bindFlag binds a flag into the global viper instance. A failure is a
// programming error.
func bindFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind %s flag: %v", key, err))
	}
}
