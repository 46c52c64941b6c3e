package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cgast/envcheck/internal/api"
	"github.com/cgast/envcheck/internal/watch"
	"github.com/cgast/envcheck/pkg/check"
	"github.com/cgast/envcheck/pkg/history"
)

func serveCmd(a *app) *cobra.Command {
	var (
		port      int
		watchList bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve check results and history over HTTP",
		Long: `Start the JSON API. The first request probes the interpreter;
POST /api/check runs a fresh check and records it in history. Edits to a
configured requirement file invalidate the cached results.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.API.Port = port
			}

			var store history.Store
			if a.cfg.History.Persist {
				bolt, err := a.openHistory()
				if err != nil {
					return err
				}
				defer bolt.Close()
				store = bolt
			}

			srv := api.New(func(ctx context.Context) (*check.Evaluator, error) {
				return a.newEvaluator(ctx)
			}, store, a.bus, a.logger, api.Options{
				Token:   a.cfg.API.Token,
				Debug:   a.cfg.API.Debug,
				MaxRuns: a.cfg.History.MaxEntries,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if watchList && a.cfg.Requirements.Path != "" {
				w, err := watch.New(a.cfg.Requirements.Path, srv.Invalidate, watch.WithLogger(a.logger))
				if err != nil {
					a.logger.Warn("not watching requirement list", zap.Error(err))
				} else {
					w.Start(ctx)
					defer w.Stop()
				}
			}

			if a.cfg.API.Token == "" {
				a.logger.Warn("api token not set, POST /api/check is open to anyone who can reach the port")
			}
			a.logger.Info("starting api", zap.Int("port", a.cfg.API.Port))
			return srv.Start(ctx, a.cfg.API.Port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides api.port)")
	cmd.Flags().BoolVar(&watchList, "watch", true, "Re-evaluate when the requirement file changes")
	return cmd
}
