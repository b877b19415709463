package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cfgFile stores an optional explicit path to a config file
// (if not provided we try ./narrow.config.{json,yaml,toml} by default).
var cfgFile string

// moduleBacktracking (aka --module-backtracking) mirrors the Import
// Resolver's filesystem-walk fallback depth across every subcommand.
var moduleBacktracking int

var rootCmd = &cobra.Command{
	Use:   "narrow",
	Short: "Reachability-aware vulnerability narrowing for a source tree",
	// PersistentPreRunE executes before any subcommand; we use it to load config/env.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// If --config was provided, take it; else look for ./narrow.config.{json,yaml,toml}
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			viper.AddConfigPath(".")
			viper.SetConfigName("narrow.config")
			// Let viper detect the extension (json/yaml/toml) automatically.
		}

		// Read env vars with prefix NARROW_, e.g. NARROW_MODULE_BACKTRACKING
		viper.SetEnvPrefix("NARROW")
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		viper.AutomaticEnv()

		// Read config file if present; it's ok if none is found.
		if err := viper.ReadInConfig(); err == nil {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
		return nil
	},
}

// Execute is called from main.go and starts the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Define persistent flags that apply to all subcommands.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./narrow.config.{json,yaml,toml})")
	rootCmd.PersistentFlags().IntVar(&moduleBacktracking, "module-backtracking", 2, "directory levels the import resolver's filesystem fallback walks up")

	// Bind these flags to viper keys so config/env/flags merge cleanly.
	_ = viper.BindPFlag("module-backtracking", rootCmd.PersistentFlags().Lookup("module-backtracking"))
}
