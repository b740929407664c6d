package cmd

import (
	"errors"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentic-research/pocket/internal/mcptools"
)

func mcpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the editor tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			if addr := a.cfg.MetricsAddr; addr != "" {
				srv := &http.Server{
					Addr:              addr,
					Handler:           a.metrics.WithProcessCollectors().Handler(),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					a.log.Info("serving metrics", zap.String("addr", addr))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.log.Error("metrics server stopped", zap.Error(err))
					}
				}()
				defer func() { _ = srv.Close() }()
			}

			svc := mcptools.NewService(m, a.dispatcher())
			a.log.Info("mcp server starting", zap.String("version", Version))
			return server.ServeStdio(mcptools.NewServer(svc, Version))
		},
	}
}
