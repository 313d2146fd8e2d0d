package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cream-quant/synthcore/internal/config"
	"github.com/cream-quant/synthcore/internal/httpapi"
	"github.com/cream-quant/synthcore/internal/registry"
	"github.com/cream-quant/synthcore/internal/store"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the validation HTTP service",
		Long: `Serves the validation pipeline over HTTP: POST /validate, POST /trigger,
GET /reports/{indicator}, GET /health, GET /metrics, and a websocket report
stream on /ws/reports.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var reg registry.Registry = registry.NewMemory()
			if cfg.Redis.Addr != "" {
				redisReg, err := registry.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
				if err != nil {
					return err
				}
				reg = redisReg
				log.Info().Str("addr", cfg.Redis.Addr).Msg("indicator registry: redis")
			} else {
				log.Info().Msg("indicator registry: in-memory (no redis configured)")
			}

			var archive *store.Store
			if cfg.Postgres.DSN != "" {
				archive, err = store.Open(ctx, cfg.Postgres.DSN)
				if err != nil {
					return err
				}
				defer archive.Close()
				log.Info().Msg("report archive: postgres")
			} else {
				log.Info().Msg("report archive disabled (no postgres configured)")
			}

			api := httpapi.New(cfg, reg, archive, prometheus.NewRegistry())
			defer api.Close()

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      api.Router(),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Server.Addr).Msg("synthcore listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				log.Info().Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")

	return cmd
}
