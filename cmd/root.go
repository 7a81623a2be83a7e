package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tracklist/config"
	"tracklist/logger"
)

// envFile is the .env file loaded by every command.
var envFile string

var rootCmd = &cobra.Command{
	Use:          "tracklist",
	Short:        "Tracklist is a music track and playlist service.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd)
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path of the .env file to load")
}

// setup loads and validates the configuration and initializes the logger.
func setup() (*config.Config, error) {
	cfg := config.Load(envFile)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogFile,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
	})
	return cfg, nil
}
