package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"imgscan/pkg/config"
	"imgscan/pkg/logger"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	backendURL string
	quiet      bool

	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "imgscan",
	Short: "Scan web pages and collect every image they reference",
	Long: `imgscan scans one or more web page URLs and collects every image
referenced by those pages, optionally executing client-side scripts to
reveal dynamically injected images.

Results can be filtered by format, width, source page and name, and
downloaded individually or packed into a single ZIP archive.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		flags := map[string]interface{}{
			"backend":   backendURL,
			"log-level": logLevel,
		}
		var err error
		cfg, err = config.Load(configFile, flags)
		if err != nil {
			return err
		}

		level := cfg.Logging.Level
		if quiet {
			level = "error"
		}
		return logger.Initialize(logger.Options{
			Level: level,
			File:  cfg.Logging.File,
		})
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .imgscan.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "extraction backend base URL")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
}
