package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/hotel-scout/internal/bot"
	"github.com/Veraticus/hotel-scout/internal/config"
	"github.com/Veraticus/hotel-scout/internal/session"
	"github.com/Veraticus/hotel-scout/internal/telegram"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const sessionSweepInterval = 10 * time.Minute

func botCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Long: `Run the hotel search assistant as a Telegram bot using long polling.

Requires telegram.token (or BOT_TOKEN) and Amadeus credentials
(amadeus.client_id/amadeus.client_secret or AMADEUS_API_KEY/AMADEUS_API_SECRET).`,
		RunE: runBot,
	}

	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().Duration("session-ttl", 24*time.Hour, "forget conversations idle for longer than this")
	_ = viper.BindPFlag("metrics.addr", cmd.Flags().Lookup("metrics-addr"))

	return cmd
}

func runBot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sessionTTL, _ := cmd.Flags().GetDuration("session-ttl")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	provider, err := newProvider(cfg, store)
	if err != nil {
		return err
	}
	defer func() { _ = provider.Close() }()

	enricher, err := newEnricher(cfg, store, store)
	if err != nil {
		return err
	}

	api, err := telegram.NewClient(telegram.ClientConfig{
		Logger:  slog.Default(),
		Token:   cfg.Telegram.Token,
		BaseURL: cfg.Telegram.BaseURL,
		Retry:   cfg.RetryPolicy("telegram"),
	})
	if err != nil {
		return err
	}
	me, err := api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach Telegram: %w", err)
	}
	if err := api.SetMyCommands(ctx, menuCommands()); err != nil {
		slog.Warn("Failed to publish the command menu", "error", err)
	}

	sessions := session.NewStore()
	b, err := bot.New(bot.Config{
		Gateway:              telegram.NewGateway(api, slog.Default()),
		Provider:             provider,
		History:              store,
		Enricher:             enricher,
		Sessions:             sessions,
		Logger:               slog.Default(),
		SearchingPlaceholder: cfg.Telegram.SearchingPlaceholder,
		NotFoundPlaceholder:  cfg.Telegram.NotFoundPlaceholder,
	})
	if err != nil {
		return err
	}
	dispatcher := bot.NewDispatcher(b, bot.DefaultIdleTimeout, slog.Default())
	poller := telegram.NewPoller(api, dispatcher, cfg.Telegram.PollTimeout, slog.Default())

	slog.Info("🏨 Bot started", "username", me.Username, "database", cfg.Database.Path)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return serveMetrics(gctx, cfg.Metrics) })
	}
	g.Go(func() error {
		sweepSessions(gctx, sessions, sessionTTL)
		return nil
	})
	g.Go(func() error {
		err := poller.Run(gctx)
		if err != nil {
			return err
		}
		// The poller only returns cleanly on shutdown; stop the other loops too.
		return context.Canceled
	})

	err = g.Wait()
	dispatcher.Wait()
	enricher.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("Bot stopped")
	return nil
}

func menuCommands() []telegram.BotCommand {
	commands := bot.Commands()
	out := make([]telegram.BotCommand, 0, len(commands))
	for _, c := range commands {
		out = append(out, telegram.BotCommand{Command: c.Name, Description: c.Description})
	}
	return out
}

func serveMetrics(ctx context.Context, cfg config.MetricsConfig) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Serving metrics", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}

func sweepSessions(ctx context.Context, sessions *session.Store, ttl time.Duration) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := sessions.Expire(ttl); removed > 0 {
				slog.Debug("Expired idle sessions", "removed", removed, "active", sessions.Len())
			}
		}
	}
}
