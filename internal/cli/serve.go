package cli

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/forPelevin/clipforge/internal/logx"
	"github.com/forPelevin/clipforge/internal/pipeline"
	"github.com/forPelevin/clipforge/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, os.Getenv)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			log := newLogger(cmd, cfg)
			if !log.Enabled(logx.LevelDebug) {
				gin.SetMode(gin.ReleaseMode)
			}
			printChecks(cmd.ErrOrStderr(), toolChecks(cfg, exec.LookPath, statFile))

			srv := server.New(cmd.Context(), cfg, pipeline.Run, log.Logf)
			log.Info("listening on %s", cfg.Server.Addr)
			if err := srv.ListenAndServe(cmd.Context(), cfg.Server.Addr); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			log.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().String("addr", ":8080", "Listen address")
	return cmd
}
