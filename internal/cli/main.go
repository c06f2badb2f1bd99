package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/forPelevin/clipforge/internal/config"
	"github.com/forPelevin/clipforge/internal/logx"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "clipforge",
		Short:         "Cut captioned short clips from a long video",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().String("config", "", "Config file (default ./clipforge.yaml or $"+config.EnvConfigPath+")")
	root.PersistentFlags().String("log-level", "", "Log level: quiet|normal|verbose|debug")

	root.AddCommand(newRunCmd(), newValidateCmd(), newServeCmd(), newInitCmd())
	return root
}

// loadConfig resolves defaults, the config file, the environment and the
// global flags, in that order of precedence.
func loadConfig(cmd *cobra.Command, getenv func(string) string) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = getenv(config.EnvConfigPath)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *logx.Logger {
	level, err := logx.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logx.LevelNormal
	}
	return logx.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), level)
}
