package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/papercast/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "papercast",
		Short: "paper chat, practice questions and explainer videos",
	}
	rootCmd.AddCommand(
		serviceCmd("paper", "paper chat and practice question service", runPaper),
		serviceCmd("video", "storyboard video generation service", runVideo),
	)
	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func serviceCmd(name, short string, run func(cfg *config.Config) error) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
	}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run " + name + " server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded",
				zap.String("config", configPath), zap.String("service", name))
			return run(cfg)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	cmd.AddCommand(runCmd)
	return cmd
}
