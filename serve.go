package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"preface-cli/internal/config"
	"preface-cli/internal/logger"
	"preface-cli/internal/transcoder"
)

func newServeCmd() *cobra.Command {
	var (
		cfgPath string
		port    int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the stream transcoder as an HTTP service",
		Long: `Run the stream transcoder as an HTTP service.

Settings come from an optional YAML file (--config) and PREFACE_* environment
variables, e.g. PREFACE_UPSTREAM_PROVIDER=openai PREFACE_UPSTREAM_API_KEY=...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer(cfgPath)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			level := cfg.Log.Level
			if debugMode {
				level = "debug"
			}
			if err := logger.Init(level, cfg.Log.Format, os.Stdout); err != nil {
				return err
			}
			if level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			upstream, err := transcoder.NewUpstream(cfg.Upstream)
			if err != nil {
				return err
			}
			collab := transcoder.NewCollaborator(cfg.Upstream.BaseURL, &http.Client{Timeout: cfg.Upstream.Timeout})
			srv := transcoder.NewServer(cfg, upstream, collab)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.ListenAndServe(ctx); err != nil {
				return fmt.Errorf("serving: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to a YAML server config")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}
