package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kfreiman/careerlink/internal/config"
	"github.com/kfreiman/careerlink/internal/mcp"
	"github.com/kfreiman/careerlink/internal/orchestrate"
	"github.com/kfreiman/careerlink/internal/redaction"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"mcp-server"},
	Short:   "Start the MCP server",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := mustLogger()

		cfg, err := config.LoadConfig()
		if err != nil {
			logger.ErrorContext(ctx, "failed to load config",
				"error", err,
			)
			os.Exit(1)
		}

		core, err := newComponents(cfg, afero.NewOsFs(), logger)
		if err != nil {
			logger.ErrorContext(ctx, "failed to build components",
				"error", err,
			)
			os.Exit(1)
		}
		core.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		logger.InfoContext(ctx, "mcp server starting",
			"port", cfg.Port,
			"backend_url", cfg.BackendURL,
			"oauth", cfg.OAuthConfigured(),
		)

		srv := mcp.NewServer(cfg, mcp.Dependencies{
			Sync:     core.sync,
			Ranking:  core.ranking,
			Parsing:  core.parsing,
			Backend:  core.backend,
			Gatherer: core.registry,
		}, logger)

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return srv.ListenAndServe(gctx)
		})

		// Surface a misconfigured identity provider at startup instead of
		// on the first link.
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(gctx, cfg.CredentialAttemptTimeout)
			defer cancel()
			if _, err := core.credentials.Credential(checkCtx, orchestrate.CredentialOptions{}); err != nil {
				logger.WarnContext(checkCtx, "credential source not ready",
					"error", redaction.RedactString(err.Error()),
				)
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			logger.ErrorContext(ctx, "mcp server stopped",
				"error", err,
			)
			os.Exit(1)
		}
		logger.InfoContext(ctx, "mcp server stopped")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
