package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/example/foodsched/internal/config"
	"github.com/example/foodsched/internal/db"
	"github.com/example/foodsched/internal/events"
	"github.com/example/foodsched/internal/logging"
	"github.com/example/foodsched/internal/migrate"
	"github.com/example/foodsched/internal/orders"
	"github.com/example/foodsched/internal/ordering"
	"github.com/example/foodsched/internal/restaurants"
	"github.com/example/foodsched/internal/routing"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "foodsched",
		Short:         "Restaurant opening hours, order slots and delivery timelines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newServerCmd())
	root.AddCommand(newUserCmd())
	root.AddCommand(newRestaurantCmd())
	root.AddCommand(newAvailabilityCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads .env and the environment, then installs the default
// logger.
func loadConfig() (config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, err
	}
	slog.SetDefault(logging.New(os.Stderr, logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "foodsched",
		Version: Version,
	}))
	return cfg, nil
}

func openDB(ctx context.Context, cfg config.Config, migrateUp bool) (*db.DB, error) {
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if migrateUp {
		if err := migrate.Up(ctx, d); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}

func newEstimator(cfg config.Config) routing.Estimator {
	if cfg.RoutingURL == "" {
		return routing.Haversine{}
	}
	return routing.Fallback{
		Primary:   routing.New(cfg.RoutingURL, cfg.RoutingTimeout),
		Secondary: routing.Haversine{},
		Log:       logging.Component(slog.Default(), "routing"),
	}
}

func newOrderingService(cfg config.Config, d *db.DB, pub events.Publisher) *ordering.Service {
	return &ordering.Service{
		Restaurants: restaurants.NewRepo(d),
		Orders:      orders.NewRepo(d),
		Routes:      newEstimator(cfg),
		Events:      pub,
		Horizon:     cfg.NextOpeningHorizon(),
		Log:         logging.Component(slog.Default(), "ordering"),
	}
}

func parseInstant(flag, v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s (want RFC3339, e.g. 2024-06-03T11:30:00+02:00)", flag)
	}
	return t, nil
}
