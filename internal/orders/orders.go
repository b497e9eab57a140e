package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/example/foodsched/internal/availability"
	"github.com/example/foodsched/internal/db"
	"github.com/example/foodsched/internal/routing"
	"github.com/google/uuid"
)

type Status string

const (
	StatusCart      Status = "cart"
	StatusPlaced    Status = "placed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type Order struct {
	ID           string
	RestaurantID int64
	Status       Status
	Mode         availability.Mode
	Delivery     routing.GeoPoint

	// ShippedAt is the fulfilment time the customer picked; nil once a cart
	// loses its slot.
	ShippedAt *time.Time

	PreparationStart  *time.Time
	PreparationEnd    *time.Time
	EstimatedDelivery *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ApplyTimeline copies the milestones of tl onto the order.
func (o *Order) ApplyTimeline(tl availability.Timeline) {
	o.Mode = tl.Mode
	o.PreparationStart = ptr(tl.PreparationStart)
	o.PreparationEnd = ptr(tl.PreparationEnd)
	o.EstimatedDelivery = ptr(tl.EstimatedDelivery)
}

func (o Order) Validate() error {
	if o.RestaurantID < 1 {
		return fmt.Errorf("restaurant_id required")
	}
	switch o.Status {
	case StatusCart, StatusPlaced, StatusCompleted, StatusCancelled:
	default:
		return fmt.Errorf("invalid status %q", o.Status)
	}
	if o.Mode != availability.ModeASAP && o.Mode != availability.ModeTarget {
		return fmt.Errorf("invalid mode %q", o.Mode)
	}
	if o.Status == StatusPlaced && o.ShippedAt == nil {
		return fmt.Errorf("shipped_at required for placed orders")
	}
	return o.Delivery.Validate()
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

const orderColumns = `id,restaurant_id,status,mode,shipped_at,delivery_latitude,delivery_longitude,
preparation_start,preparation_end,estimated_delivery,created_at,updated_at`

// Create stores o under a fresh id, which is returned.
func (r *Repo) Create(ctx context.Context, o Order) (string, error) {
	if err := o.Validate(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	err := r.db.Exec(ctx, `
INSERT INTO orders(id,restaurant_id,status,mode,shipped_at,delivery_latitude,delivery_longitude,preparation_start,preparation_end,estimated_delivery)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		id, o.RestaurantID, string(o.Status), string(o.Mode), o.ShippedAt, o.Delivery.Lat, o.Delivery.Lng,
		o.PreparationStart, o.PreparationEnd, o.EstimatedDelivery,
	)
	if err != nil {
		return "", db.WrapNotFound(err)
	}
	return id, nil
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Order{}, db.ErrNotFound
	}
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return Order{}, db.WrapNotFound(err)
	}
	return o, nil
}

func (r *Repo) ListByRestaurant(ctx context.Context, restaurantID int64, limit int) ([]Order, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE restaurant_id=$1
ORDER BY created_at DESC
LIMIT $2`, restaurantID, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// PendingCount is the number of placed orders the kitchen has not finished.
func (r *Repo) PendingCount(ctx context.Context, restaurantID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM orders WHERE restaurant_id=$1 AND status='placed'`, restaurantID).Scan(&n)
	return n, db.WrapNotFound(err)
}

// CartCursor marks the last cart of a ScheduledCarts page.
type CartCursor struct {
	ShippedAt time.Time
	ID        string
}

// After returns the cursor that resumes a listing past o.
func After(o Order) *CartCursor {
	c := &CartCursor{ID: o.ID}
	if o.ShippedAt != nil {
		c.ShippedAt = *o.ShippedAt
	}
	return c
}

// ScheduledCarts returns target-mode carts holding a fulfilment time, soonest
// first, ordered by (shipped_at, id). A nil cursor starts from the beginning.
func (r *Repo) ScheduledCarts(ctx context.Context, after *CartCursor, limit int) ([]Order, error) {
	var shippedAt, id any
	if after != nil {
		shippedAt, id = after.ShippedAt, after.ID
	}
	rows, err := r.db.Query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE status='cart' AND mode='target' AND shipped_at IS NOT NULL
  AND ($1::timestamptz IS NULL OR (shipped_at, id) > ($1::timestamptz, $2::uuid))
ORDER BY shipped_at ASC, id ASC
LIMIT $3`, shippedAt, id, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ClearShippedAt drops the fulfilment time and timeline of a cart. It
// reports db.ErrNotFound when no cart has that id.
func (r *Repo) ClearShippedAt(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return db.ErrNotFound
	}
	n, err := r.db.ExecCount(ctx, `
UPDATE orders
SET shipped_at=NULL, preparation_start=NULL, preparation_end=NULL, estimated_delivery=NULL, updated_at=now()
WHERE id=$1 AND status='cart'`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *Repo) SetStatus(ctx context.Context, id string, status Status) error {
	n, err := r.db.ExecCount(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

func collect(rows db.Rows) ([]Order, error) {
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row db.Row) (Order, error) {
	var o Order
	var id uuid.UUID
	var status, mode string
	err := row.Scan(&id, &o.RestaurantID, &status, &mode, &o.ShippedAt, &o.Delivery.Lat, &o.Delivery.Lng,
		&o.PreparationStart, &o.PreparationEnd, &o.EstimatedDelivery, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	o.ID = id.String()
	o.Status = Status(status)
	o.Mode = availability.Mode(mode)
	return o, nil
}

func ptr(t time.Time) *time.Time { return &t }
