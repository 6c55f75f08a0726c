package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/goliatone/go-formsync/internal/config"
	"github.com/goliatone/go-formsync/internal/logging"
)

// runtime carries the config and logger resolved before any command runs.
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "formsync:", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	rt := &runtime{cfg: config.Default(), logger: zap.NewNop()}

	return &cli.Command{
		Name:  "formsync",
		Usage: "Inspect schemas, fill forms and serve documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a .formsync.yaml file",
				Sources: cli.EnvVars(config.EnvConfig),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level (debug, info, warn, error)",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cwd, err := os.Getwd()
			if err != nil {
				return ctx, fmt.Errorf("getting cwd: %w", err)
			}
			cfg, err := config.Load(cmd.String("config"), cwd)
			if err != nil {
				return ctx, err
			}
			if level := cmd.String("log-level"); level != "" {
				cfg.Log.Level = level
			}
			logger, _, err := logging.New(cfg.Log)
			if err != nil {
				return ctx, err
			}
			rt.cfg = cfg
			rt.logger = logger
			if cfg.Path != "" {
				logger.Debug("loaded config", zap.String("path", cfg.Path))
			}
			return ctx, nil
		},
		After: func(context.Context, *cli.Command) error {
			_ = rt.logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			analyzeCommand(rt),
			defaultsCommand(rt),
			validateCommand(rt),
			serveCommand(rt),
			fillCommand(rt),
		},
	}
}
