package main

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-sorter/internal/api"
	"github.com/Veraticus/spice-sorter/internal/importer"
	"github.com/Veraticus/spice-sorter/internal/reclassify"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Long: `Serve transactions, categories, merchant overrides, statement import and
reclassification over HTTP under /api.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = opts.cfg.Server.Addr
			}
			if opts.cfg.Logging.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			a, err := opts.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.WarmOverrideCache(ctx); err != nil {
				slog.Warn("Failed to warm override cache", "error", err)
			}

			srv := api.NewServer(
				a.ledger,
				importer.New(a.ledger),
				reclassify.New(a.ledger, reclassify.WithWorkers(opts.cfg.Reclassify.Workers)),
				a.store,
				api.WithCORSOrigins(opts.cfg.Server.CORSOrigins),
			)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.addr)")
	return cmd
}
