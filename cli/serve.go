package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"polymarket-copytrader/api"
	"polymarket-copytrader/handlers"
	"polymarket-copytrader/middleware"
	"polymarket-copytrader/storage"
	"polymarket-copytrader/syncer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitoring loop and the web dashboard",
	Long: `Start the sync server and, when a profile is configured, the leader
monitoring loop. Reads are open; write endpoints require the token printed
at startup.

Example:
  copytrader serve --monitor`,
	RunE: runServe,
}

var serveMonitor bool

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveMonitor, "monitor", false, "start polling the leader immediately")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, svc, err := buildService()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := api.NewClient(cfg.Upstream.DataAPIURL)

	var metricsStore *syncer.MetricsStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		metricsStore = syncer.NewMetricsStore(redis.NewClient(opts))
	}
	if cfg.DatabaseURL != "" {
		mirror, err := storage.NewPostgresMirror(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("postgres mirror unavailable, continuing without it")
		} else {
			svc.SetMirror(mirror)
			defer mirror.Close()
		}
	}

	poller := syncer.NewPoller(cfg, svc, client, metricsStore)
	if serveMonitor {
		if err := poller.Start(); err != nil {
			return err
		}
	}
	defer poller.Stop()

	hub := handlers.NewHub()
	svc.Subscribe(hub.Broadcast)

	token, err := middleware.NewToken()
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	h := handlers.NewHandler(cfg, svc, poller, hub)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handlers.Router(h, token),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The token is shown once and never persisted.
	fmt.Printf("Dashboard:   http://%s/api/state\n", addr)
	fmt.Printf("Write token: %s\n", token)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info().Str("addr", addr).Bool("monitoring", serveMonitor).Msg("sync server started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
