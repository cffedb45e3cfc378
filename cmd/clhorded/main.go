package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abusi/clhorde/internal/config"
	"github.com/abusi/clhorde/internal/daemon"
	"github.com/abusi/clhorde/internal/logger"
)

func main() {
	var logLevel string
	var logFile string

	root := &cobra.Command{
		Use:   "clhorded",
		Short: "clhorde daemon — herds claude workers in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := config.LoadSettings()
			level := settings.LogLevel
			if logLevel != "" {
				level = logLevel
			}
			if logFile == "" {
				logFile, _ = config.LogPath()
			}
			if err := logger.Init(level, logFile); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return daemon.Run(settings)
		},
		SilenceUsage: true,
	}
	root.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.Flags().StringVar(&logFile, "log-file", "", "log file path (default {data_dir}/daemon.log)")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "clhorded: %v\n", err)
		os.Exit(1)
	}
}
