package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/example/foodsched/internal/availability"
	"github.com/example/foodsched/internal/events"
	"github.com/example/foodsched/internal/ordering"
	"github.com/example/foodsched/internal/restaurants"
	"github.com/example/foodsched/internal/routing"
	"github.com/spf13/cobra"
)

type availabilityFlags struct {
	id  int64
	now string
}

func (f *availabilityFlags) register(c *cobra.Command) {
	c.Flags().Int64Var(&f.id, "id", 0, "restaurant id")
	c.Flags().StringVar(&f.now, "now", "", "reference instant (RFC3339), defaults to FAKE_NOW or the wall clock")
	_ = c.MarkFlagRequired("id")
}

// availabilityRun is what every availability subcommand receives: the
// service, the reference instant and the restaurant's timezone.
type availabilityRun struct {
	svc *ordering.Service
	now time.Time
	loc *time.Location
}

func (f *availabilityFlags) run(fn func(ctx context.Context, a availabilityRun) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	now, err := referenceNow(cfg.FakeNow, f.now)
	if err != nil {
		return err
	}
	ctx := context.Background()
	d, err := openDB(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer d.Close()

	r, err := restaurants.NewRepo(d).Get(ctx, f.id)
	if err != nil {
		return err
	}
	sched, err := r.Schedule()
	if err != nil {
		return err
	}
	// Read-only commands never publish.
	svc := newOrderingService(cfg, d, events.Nop{})
	return fn(ctx, availabilityRun{svc: svc, now: now, loc: sched.Location()})
}

func newAvailabilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "availability",
		Aliases: []string{"avail"},
		Short:   "Query opening hours, slots and order timelines",
	}
	cmd.AddCommand(newAvailabilityHoursCmd())
	cmd.AddCommand(newAvailabilityNextCmd())
	cmd.AddCommand(newAvailabilitySlotsCmd())
	cmd.AddCommand(newAvailabilityCheckCmd())
	cmd.AddCommand(newAvailabilityTimelineCmd())
	return cmd
}

func newAvailabilityHoursCmd() *cobra.Command {
	var (
		f    availabilityFlags
		days int
	)
	c := &cobra.Command{
		Use:   "hours",
		Short: "Print the effective open intervals starting at now",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}
			return f.run(func(ctx context.Context, a availabilityRun) error {
				ivs, err := a.svc.OpenIntervals(ctx, f.id, a.now, a.now.AddDate(0, 0, days))
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DAY\tOPEN\tCLOSE")
				for _, iv := range ivs {
					start, end := iv.Start.In(a.loc), iv.End.In(a.loc)
					fmt.Fprintf(tw, "%s\t%s\t%s\n", start.Format("Mon 2006-01-02"), start.Format("15:04"), end.Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			})
		},
	}
	f.register(c)
	c.Flags().IntVar(&days, "days", 7, "number of days to resolve")
	return c
}

func newAvailabilityNextCmd() *cobra.Command {
	var f availabilityFlags
	c := &cobra.Command{
		Use:   "next",
		Short: "Print the next instant the restaurant is open",
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(func(ctx context.Context, a availabilityRun) error {
				next, err := a.svc.NextOpening(ctx, f.id, a.now)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), next.In(a.loc).Format(time.RFC3339))
				return nil
			})
		},
	}
	f.register(c)
	return c
}

func newAvailabilitySlotsCmd() *cobra.Command {
	var f availabilityFlags
	c := &cobra.Command{
		Use:   "slots",
		Short: "List orderable fulfilment slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(func(ctx context.Context, a availabilityRun) error {
				slots, err := a.svc.Slots(ctx, f.id, a.now)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, s := range slots {
					fmt.Fprintln(out, s.In(a.loc).Format(time.RFC3339))
				}
				if len(slots) == 0 {
					fmt.Fprintln(out, "no slots available")
				}
				return nil
			})
		},
	}
	f.register(c)
	return c
}

func newAvailabilityCheckCmd() *cobra.Command {
	var (
		f      availabilityFlags
		target string
	)
	c := &cobra.Command{
		Use:   "check",
		Short: "Validate a requested fulfilment time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(func(ctx context.Context, a availabilityRun) error {
				at, err := parseLocalTime(target, a.loc)
				if err != nil {
					return err
				}
				res, err := a.svc.Validate(ctx, f.id, at, a.now)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s accepted=%t reason=%s\n", at.In(a.loc).Format(time.RFC3339), res.Accepted, res.Reason)
				return nil
			})
		},
	}
	f.register(c)
	c.Flags().StringVar(&target, "at", "", "fulfilment time (RFC3339 or YYYY-MM-DD HH:MM local)")
	_ = c.MarkFlagRequired("at")
	return c
}

func newAvailabilityTimelineCmd() *cobra.Command {
	var (
		f        availabilityFlags
		mode     string
		target   string
		lat, lng float64
	)
	c := &cobra.Command{
		Use:   "timeline",
		Short: "Quote preparation and delivery milestones for an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := availability.ParseMode(mode)
			if err != nil {
				return err
			}
			return f.run(func(ctx context.Context, a availabilityRun) error {
				req := ordering.QuoteRequest{RestaurantID: f.id, Mode: m}
				if m == availability.ModeTarget {
					if target == "" {
						return fmt.Errorf("--target is required in target mode")
					}
					if req.Target, err = parseLocalTime(target, a.loc); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
					p := routing.GeoPoint{Lat: lat, Lng: lng}
					if err := p.Validate(); err != nil {
						return err
					}
					req.Delivery = &p
				}

				q, err := a.svc.Quote(ctx, req, a.now)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !q.Validation.Accepted {
					fmt.Fprintf(out, "rejected: %s\n", q.Validation.Reason)
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for _, ms := range q.Timeline.Milestones() {
					fmt.Fprintf(tw, "%s\t%s\n", ms.Label, ms.At.In(a.loc).Format(time.RFC3339))
				}
				fmt.Fprintf(tw, "preparation\t%s\n", q.Timeline.PreparationTime)
				fmt.Fprintf(tw, "shipping\t%s\n", q.Timeline.ShippingTime)
				return tw.Flush()
			})
		},
	}
	f.register(c)
	c.Flags().StringVar(&mode, "mode", string(availability.ModeASAP), "asap or target")
	c.Flags().StringVar(&target, "target", "", "requested delivery time in target mode")
	c.Flags().Float64Var(&lat, "lat", 0, "delivery latitude (omit for pickup)")
	c.Flags().Float64Var(&lng, "lng", 0, "delivery longitude")
	return c
}
