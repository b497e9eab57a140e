package restaurants

import (
	"context"
	"fmt"
	"time"

	"github.com/example/foodsched/internal/availability"
	"github.com/example/foodsched/internal/db"
)

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

const restaurantColumns = `id,name,timezone,enabled,latitude,longitude,
ordering_delay_minutes,max_lead_time_days,slot_granularity_minutes,
prep_base_minutes,prep_instant,prep_dynamic,prep_per_order_minutes,prep_max_minutes,
shipping_multiplier,shipping_minimum_minutes,fallback_speed_kmh,created_at`

func (r *Repo) Create(ctx context.Context, rest Restaurant) (int64, error) {
	rest = rest.Defaults()
	if err := rest.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := r.db.InTx(ctx, func(q db.Querier) error {
		err := q.QueryRow(ctx, `
INSERT INTO restaurants(name,timezone,enabled,latitude,longitude,
  ordering_delay_minutes,max_lead_time_days,slot_granularity_minutes,
  prep_base_minutes,prep_instant,prep_dynamic,prep_per_order_minutes,prep_max_minutes,
  shipping_multiplier,shipping_minimum_minutes,fallback_speed_kmh)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
RETURNING id`,
			rest.Name, rest.Timezone, rest.Enabled, rest.Location.Lat, rest.Location.Lng,
			rest.Policy.OrderingDelayMinutes, rest.Policy.MaxLeadTimeDays, rest.Policy.SlotGranularityMinutes,
			minutes(rest.Preparation.Base), rest.Preparation.Instant, rest.Preparation.Dynamic,
			minutes(rest.Preparation.PerPendingOrder), minutes(rest.Preparation.Max),
			rest.Shipping.Multiplier, minutes(rest.Shipping.Minimum), rest.Shipping.FallbackSpeedKmh,
		).Scan(&id)
		if err != nil {
			return err
		}
		if err := insertWeekly(ctx, q, id, rest.Weekly); err != nil {
			return err
		}
		for _, c := range rest.Closing {
			if _, err := insertClosing(ctx, q, id, c); err != nil {
				return err
			}
		}
		return nil
	})
	return id, db.WrapNotFound(err)
}

func (r *Repo) Get(ctx context.Context, id int64) (Restaurant, error) {
	rest, err := scanRestaurant(r.db.QueryRow(ctx, `SELECT `+restaurantColumns+` FROM restaurants WHERE id=$1`, id))
	if err != nil {
		return Restaurant{}, db.WrapNotFound(err)
	}
	weekly, closing, err := r.loadRules(ctx, []int64{id})
	if err != nil {
		return Restaurant{}, err
	}
	rest.Weekly = weekly[id]
	rest.Closing = closing[id]
	return rest, nil
}

func (r *Repo) List(ctx context.Context) ([]Restaurant, error) {
	rows, err := r.db.Query(ctx, `SELECT `+restaurantColumns+` FROM restaurants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Restaurant
	var ids []int64
	for rows.Next() {
		rest, err := scanRestaurant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rest)
		ids = append(ids, rest.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	weekly, closing, err := r.loadRules(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Weekly = weekly[out[i].ID]
		out[i].Closing = closing[out[i].ID]
	}
	return out, nil
}

// AddWeeklyRules appends rules after checking the result is still a valid
// schedule (no overlapping hours on the same day).
func (r *Repo) AddWeeklyRules(ctx context.Context, id int64, rules []availability.WeeklyRule) error {
	rest, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	rest.Weekly = append(rest.Weekly, rules...)
	if _, err := rest.Schedule(); err != nil {
		return err
	}
	return r.db.InTx(ctx, func(q db.Querier) error {
		return insertWeekly(ctx, q, id, rules)
	})
}

func (r *Repo) AddClosingRule(ctx context.Context, id int64, rule availability.ClosingRule) (int64, error) {
	rest, err := r.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	rest.Closing = append(rest.Closing, rule)
	if _, err := rest.Schedule(); err != nil {
		return 0, err
	}
	return insertClosing(ctx, r.db, id, rule)
}

func (r *Repo) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	n, err := r.db.ExecCount(ctx, `UPDATE restaurants SET enabled=$2 WHERE id=$1`, id, enabled)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *Repo) loadRules(ctx context.Context, ids []int64) (map[int64][]availability.WeeklyRule, map[int64][]availability.ClosingRule, error) {
	weekly := make(map[int64][]availability.WeeklyRule, len(ids))
	rows, err := r.db.Query(ctx, `
SELECT restaurant_id,weekday,start_minute,end_minute
FROM weekly_rules
WHERE restaurant_id = ANY($1)
ORDER BY restaurant_id,weekday,start_minute`, ids)
	if err != nil {
		return nil, nil, err
	}
	for rows.Next() {
		var rid int64
		var day, start, end int
		if err := rows.Scan(&rid, &day, &start, &end); err != nil {
			rows.Close()
			return nil, nil, err
		}
		weekly[rid] = append(weekly[rid], availability.WeeklyRule{
			Day: time.Weekday(day), Start: availability.TimeOfDay(start), End: availability.TimeOfDay(end),
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	closing := make(map[int64][]availability.ClosingRule, len(ids))
	rows, err = r.db.Query(ctx, `
SELECT restaurant_id,starts_at,ends_at,mode
FROM closing_rules
WHERE restaurant_id = ANY($1)
ORDER BY restaurant_id,starts_at`, ids)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var rid int64
		var c availability.ClosingRule
		var mode string
		if err := rows.Scan(&rid, &c.Range.Start, &c.Range.End, &mode); err != nil {
			return nil, nil, err
		}
		c.Mode = availability.ClosingMode(mode)
		closing[rid] = append(closing[rid], c)
	}
	return weekly, closing, rows.Err()
}

func insertWeekly(ctx context.Context, q db.Querier, id int64, rules []availability.WeeklyRule) error {
	for _, w := range rules {
		if err := q.Exec(ctx, `INSERT INTO weekly_rules(restaurant_id,weekday,start_minute,end_minute) VALUES ($1,$2,$3,$4)`,
			id, int(w.Day), int(w.Start), int(w.End)); err != nil {
			return fmt.Errorf("insert weekly rule %s: %w", w, err)
		}
	}
	return nil
}

func insertClosing(ctx context.Context, q db.Querier, id int64, c availability.ClosingRule) (int64, error) {
	var ruleID int64
	err := q.QueryRow(ctx, `INSERT INTO closing_rules(restaurant_id,starts_at,ends_at,mode) VALUES ($1,$2,$3,$4) RETURNING id`,
		id, c.Range.Start.UTC(), c.Range.End.UTC(), string(c.Mode)).Scan(&ruleID)
	return ruleID, err
}

func scanRestaurant(row db.Row) (Restaurant, error) {
	var r Restaurant
	var prepBase, prepPer, prepMax, shipMin int
	err := row.Scan(
		&r.ID, &r.Name, &r.Timezone, &r.Enabled, &r.Location.Lat, &r.Location.Lng,
		&r.Policy.OrderingDelayMinutes, &r.Policy.MaxLeadTimeDays, &r.Policy.SlotGranularityMinutes,
		&prepBase, &r.Preparation.Instant, &r.Preparation.Dynamic, &prepPer, &prepMax,
		&r.Shipping.Multiplier, &shipMin, &r.Shipping.FallbackSpeedKmh, &r.CreatedAt,
	)
	if err != nil {
		return Restaurant{}, err
	}
	r.Preparation.Base = time.Duration(prepBase) * time.Minute
	r.Preparation.PerPendingOrder = time.Duration(prepPer) * time.Minute
	r.Preparation.Max = time.Duration(prepMax) * time.Minute
	r.Shipping.Minimum = time.Duration(shipMin) * time.Minute
	return r, nil
}

func minutes(d time.Duration) int { return int(d / time.Minute) }
