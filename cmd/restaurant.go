package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/example/foodsched/internal/availability"
	"github.com/example/foodsched/internal/clock"
	"github.com/example/foodsched/internal/config"
	"github.com/example/foodsched/internal/restaurants"
	"github.com/spf13/cobra"
)

func newRestaurantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "restaurant",
		Aliases: []string{"restaurants"},
		Short:   "Manage restaurants, opening hours and closing rules",
	}
	cmd.AddCommand(newRestaurantCreateCmd())
	cmd.AddCommand(newRestaurantAddHoursCmd())
	cmd.AddCommand(newRestaurantCloseCmd())
	cmd.AddCommand(newRestaurantEnableCmd())
	cmd.AddCommand(newRestaurantListCmd())
	return cmd
}

// withRepo opens the database, runs fn and closes it again.
func withRepo(fn func(ctx context.Context, cfg config.Config, repo *restaurants.Repo) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	d, err := openDB(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(ctx, cfg, restaurants.NewRepo(d))
}

func newRestaurantCreateCmd() *cobra.Command {
	var (
		r           restaurants.Restaurant
		hours       string
		prepBase    time.Duration
		prepPer     time.Duration
		prepMax     time.Duration
		shipMinimum time.Duration
	)

	c := &cobra.Command{
		Use:     "create",
		Short:   "Create a restaurant with its weekly hours",
		Example: `  foodsched restaurant create --name "Chez Nous" --timezone Europe/Paris \
    --lat 48.8566 --lng 2.3522 --hours "mon=11:00-14:00,19:00-22:00;sat=19:00-01:00"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			weekly, err := parseHours(hours)
			if err != nil {
				return err
			}
			r.Weekly = weekly
			r.Preparation.Base = prepBase
			r.Preparation.PerPendingOrder = prepPer
			r.Preparation.Max = prepMax
			r.Shipping.Minimum = shipMinimum

			return withRepo(func(ctx context.Context, _ config.Config, repo *restaurants.Repo) error {
				id, err := repo.Create(ctx, r)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created restaurant %d (%s)\n", id, r.Name)
				return nil
			})
		},
	}

	f := c.Flags()
	f.StringVar(&r.Name, "name", "", "restaurant name")
	f.StringVar(&r.Timezone, "timezone", "", "IANA timezone, e.g. Europe/Paris")
	f.Float64Var(&r.Location.Lat, "lat", 0, "latitude")
	f.Float64Var(&r.Location.Lng, "lng", 0, "longitude")
	f.BoolVar(&r.Enabled, "enabled", true, "accept orders")
	f.StringVar(&hours, "hours", "", `weekly hours, e.g. "mon=11:00-14:00,19:00-22:00;tue=11:00-14:00"`)
	f.IntVar(&r.Policy.OrderingDelayMinutes, "delay", availability.DefaultPolicy.OrderingDelayMinutes, "minimum minutes between now and a fulfilment time")
	f.IntVar(&r.Policy.MaxLeadTimeDays, "lead-days", availability.DefaultPolicy.MaxLeadTimeDays, "how many days ahead orders are accepted")
	f.IntVar(&r.Policy.SlotGranularityMinutes, "granularity", availability.DefaultPolicy.SlotGranularityMinutes, "slot step in minutes")
	f.DurationVar(&prepBase, "prep", availability.DefaultPreparationTime, "base preparation time")
	f.BoolVar(&r.Preparation.Instant, "prep-instant", false, "orders need no preparation")
	f.BoolVar(&r.Preparation.Dynamic, "prep-dynamic", false, "add time per pending order")
	f.DurationVar(&prepPer, "prep-per-order", 0, "extra preparation per pending order")
	f.DurationVar(&prepMax, "prep-max", 0, "cap on dynamic preparation time (0 = none)")
	f.Float64Var(&r.Shipping.Multiplier, "ship-multiplier", 1, "factor applied to route durations")
	f.DurationVar(&shipMinimum, "ship-min", 0, "minimum shipping time")
	f.Float64Var(&r.Shipping.FallbackSpeedKmh, "fallback-speed", 0, "courier speed in km/h when only distance is known (0 = default)")
	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("timezone")
	return c
}

func newRestaurantAddHoursCmd() *cobra.Command {
	var (
		id    int64
		hours string
	)
	c := &cobra.Command{
		Use:   "add-hours",
		Short: "Append weekly opening hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			weekly, err := parseHours(hours)
			if err != nil {
				return err
			}
			if len(weekly) == 0 {
				return fmt.Errorf("--hours is empty")
			}
			return withRepo(func(ctx context.Context, _ config.Config, repo *restaurants.Repo) error {
				if err := repo.AddWeeklyRules(ctx, id, weekly); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %d rule(s) to restaurant %d\n", len(weekly), id)
				return nil
			})
		},
	}
	c.Flags().Int64Var(&id, "id", 0, "restaurant id")
	c.Flags().StringVar(&hours, "hours", "", `weekly hours, e.g. "sun=10:00-15:00"`)
	_ = c.MarkFlagRequired("id")
	_ = c.MarkFlagRequired("hours")
	return c
}

func newRestaurantCloseCmd() *cobra.Command {
	var (
		id       int64
		from, to string
		mode     string
	)
	c := &cobra.Command{
		Use:   "close",
		Short: "Add a closing (or exceptional opening) period",
		Long:  `Adds an override to the weekly hours. --mode CLOSE (default) shuts the
restaurant for the period; --mode OPEN opens it outside its weekly hours.
CLOSE always wins where both overlap. Local times are read in the
restaurant's timezone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := availability.ClosingMode(strings.ToUpper(strings.TrimSpace(mode)))
			return withRepo(func(ctx context.Context, _ config.Config, repo *restaurants.Repo) error {
				r, err := repo.Get(ctx, id)
				if err != nil {
					return err
				}
				sched, err := r.Schedule()
				if err != nil {
					return err
				}
				start, err := parseLocalTime(from, sched.Location())
				if err != nil {
					return err
				}
				end, err := parseLocalTime(to, sched.Location())
				if err != nil {
					return err
				}
				ruleID, err := repo.AddClosingRule(ctx, id, availability.ClosingRule{
					Range: availability.TimeInterval{Start: start, End: end},
					Mode:  m,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s rule %d: %s -> %s\n", m, ruleID,
					start.In(sched.Location()).Format(time.RFC3339), end.In(sched.Location()).Format(time.RFC3339))
				return nil
			})
		},
	}
	c.Flags().Int64Var(&id, "id", 0, "restaurant id")
	c.Flags().StringVar(&from, "from", "", "period start (RFC3339 or YYYY-MM-DD HH:MM local)")
	c.Flags().StringVar(&to, "to", "", "period end, exclusive")
	c.Flags().StringVar(&mode, "mode", string(availability.ModeClose), "CLOSE or OPEN")
	_ = c.MarkFlagRequired("id")
	_ = c.MarkFlagRequired("from")
	_ = c.MarkFlagRequired("to")
	return c
}

func newRestaurantEnableCmd() *cobra.Command {
	var (
		id      int64
		disable bool
	)
	c := &cobra.Command{
		Use:   "enable",
		Short: "Enable (or with --disable, disable) ordering",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(ctx context.Context, _ config.Config, repo *restaurants.Repo) error {
				if err := repo.SetEnabled(ctx, id, !disable); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "restaurant %d enabled=%t\n", id, !disable)
				return nil
			})
		},
	}
	c.Flags().Int64Var(&id, "id", 0, "restaurant id")
	c.Flags().BoolVar(&disable, "disable", false, "stop accepting orders")
	_ = c.MarkFlagRequired("id")
	return c
}

func newRestaurantListCmd() *cobra.Command {
	var now string
	c := &cobra.Command{
		Use:   "list",
		Short: "List restaurants, open ones first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(func(ctx context.Context, cfg config.Config, repo *restaurants.Repo) error {
				at, err := referenceNow(cfg.FakeNow, now)
				if err != nil {
					return err
				}
				rs, err := repo.List(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tTIMEZONE\tENABLED\tOPEN\tNEXT OPENING")
				for _, l := range restaurants.SortForListing(rs, at, cfg.NextOpeningHorizon()) {
					next := "-"
					switch {
					case l.ScheduleErr != nil:
						next = "misconfigured"
						slog.Warn("restaurant schedule misconfigured",
							slog.Int64("restaurant_id", l.Restaurant.ID), slog.Any("error", l.ScheduleErr))
					case !l.NextOpening.IsZero():
						next = l.NextOpening.Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%s\n",
						strconv.FormatInt(l.Restaurant.ID, 10), l.Restaurant.Name, l.Restaurant.Timezone,
						l.Restaurant.Enabled, l.Open, next)
				}
				return tw.Flush()
			})
		},
	}
	c.Flags().StringVar(&now, "now", "", "reference instant (RFC3339), defaults to FAKE_NOW or the wall clock")
	return c
}

// referenceNow resolves --now, then FAKE_NOW, then the wall clock.
func referenceNow(fakeNow, flag string) (time.Time, error) {
	if flag != "" {
		return parseInstant("now", flag)
	}
	clk, err := clock.FromConfig(fakeNow)
	if err != nil {
		return time.Time{}, err
	}
	return clk.Now(), nil
}
