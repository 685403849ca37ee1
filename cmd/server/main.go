package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"fallback-chat/internal/app"
	"fallback-chat/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "fallback-chat",
		Short: "Chat generation backend with primary/fallback model routing",
		Long: `fallback-chat answers chat messages with a primary generative model and,
when that attempt fails, retries once on a fallback model.

Configuration comes from the environment and an optional .env file.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newAskCmd(opts))
	cmd.AddCommand(newEventsCmd(opts))
	return cmd
}

func (o *rootOptions) load(ctx context.Context) (config.Config, *app.App, error) {
	cfg, err := config.Load(o.envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := cfg.NewLogger(os.Stderr)
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, a, nil
}
