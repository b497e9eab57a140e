package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/foodsched/internal/auth"
	"github.com/example/foodsched/internal/clock"
	"github.com/example/foodsched/internal/events"
	"github.com/example/foodsched/internal/logging"
	"github.com/example/foodsched/internal/orders"
	"github.com/example/foodsched/internal/realtime"
	"github.com/example/foodsched/internal/restaurants"
	"github.com/example/foodsched/internal/scheduler"
	"github.com/example/foodsched/internal/web"
	"github.com/spf13/cobra"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the JSON API and the cart sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireCookieKeys(); err != nil {
				return err
			}
			clk, err := clock.FromConfig(cfg.FakeNow)
			if err != nil {
				return err
			}
			if _, fixed := clk.(clock.Fixed); fixed {
				slog.Warn("FAKE_NOW set, clock is frozen", slog.Time("now", clk.Now()))
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := openDB(ctx, cfg, migrateUp)
			if err != nil {
				return err
			}
			defer d.Close()

			pub := events.Fanout{events.New(cfg.KafkaBrokers, cfg.KafkaTopic)}
			var (
				hub    *realtime.Hub
				tokens *auth.KitchenTokens
			)
			if len(cfg.KitchenTokenSecret) > 0 {
				hub = realtime.NewHub()
				tokens = auth.NewKitchenTokens(cfg.KitchenTokenSecret, cfg.KitchenTokenTTL)
				pub = append(pub, hub)
			} else {
				slog.Info("KITCHEN_TOKEN_SECRET not set, kitchen order stream disabled")
			}
			defer pub.Close()

			svc := newOrderingService(cfg, d, pub)
			authStore := auth.NewStore(auth.PGUsers{DB: d}, cfg.CookieHashKey, cfg.CookieBlockKey)

			sweeper := &scheduler.Scheduler{
				Carts:    orders.NewRepo(d),
				Checker:  svc,
				Clock:    clk,
				Interval: cfg.SweepInterval,
				Log:      logging.Component(slog.Default(), "scheduler"),
			}
			go func() { _ = sweeper.Run(ctx) }()

			ws := &web.Server{
				Auth:     authStore,
				Ordering: svc,
				Closing:  restaurants.NewRepo(d),
				Carts:    orders.NewRepo(d),
				Clock:    clk,
				Tokens:   tokens,
				Realtime: hub,
				Ping:     d.Ping,
				Log:      logging.Component(slog.Default(), "web"),
			}
			slog.Info("starting server",
				slog.String("addr", cfg.ListenAddr),
				slog.Any("kafka_brokers", cfg.KafkaBrokers),
				slog.String("routing_url", cfg.RoutingURL),
				slog.Duration("sweep_interval", cfg.SweepInterval),
			)
			return web.Start(ctx, cfg.ListenAddr, ws.Routes())
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	return cmd
}
