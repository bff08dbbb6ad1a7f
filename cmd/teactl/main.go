package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaenox/tea-bot/pkg/config"
	"github.com/xaenox/tea-bot/pkg/logger"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "teactl",
		Short:         "teactl - manage the estimation assistant's data",
		Long:          "Seeds demo conversations, prints dashboard statistics and answers admin queries from the command line.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the config file")

	root.AddCommand(
		seedCmd(),
		statsCmd(),
		askCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, log, nil
}
