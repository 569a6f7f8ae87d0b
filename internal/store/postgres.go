package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderhub/order-intake/internal/catalog"
	"github.com/orderhub/order-intake/internal/order"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const (
	productsQuery = `SELECT name, unit_synonyms FROM products ORDER BY id`

	restaurantByPhoneQuery = `
SELECT r.id, r.name
FROM restaurants r
JOIN client_phone_numbers p ON r.id = p.client_id
WHERE p.phone_number = $1`

	insertOrderQuery = `
INSERT INTO restaurant_orders (
	restaurant_id, restaurant_name, quantity, unit, product, corrections,
	order_date, original_text, need_attention, message, message_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
)

// Postgres is the catalog provider, restaurant directory and order store
// backed by the orders database.
type Postgres struct {
	db  DBTX
	now func() time.Time
}

func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// Connect opens a pool and checks it with a ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Products implements catalog.Provider.
func (p *Postgres) Products(ctx context.Context) ([]catalog.Entry, error) {
	rows, err := p.db.Query(ctx, productsQuery)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []catalog.Entry
	for rows.Next() {
		var (
			e     catalog.Entry
			units []string
		)
		if err := rows.Scan(&e.Name, &units); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		e.UnitSynonyms = units
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

// RestaurantByPhone finds the restaurant that owns phone. A "whatsapp:"
// prefix is ignored.
func (p *Postgres) RestaurantByPhone(ctx context.Context, phone string) (order.Restaurant, error) {
	var r order.Restaurant
	err := p.db.QueryRow(ctx, restaurantByPhoneQuery, NormalizePhone(phone)).Scan(&r.ID, &r.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.Restaurant{}, ErrRestaurantNotFound
	}
	if err != nil {
		return order.Restaurant{}, fmt.Errorf("query restaurant by phone: %w", err)
	}
	return r, nil
}

func (p *Postgres) SaveLine(ctx context.Context, r order.Restaurant, l order.Line) error {
	row := NewRow(r, l, p.now())
	_, err := p.db.Exec(ctx, insertOrderQuery,
		nullID(row.RestaurantID),
		row.RestaurantName,
		ptr(row.Quantity),
		ptr(row.Unit),
		ptr(row.Product),
		row.Corrections,
		row.Date,
		row.OriginalText,
		row.NeedAttention,
		row.Message,
		row.MessageID,
	)
	if err != nil {
		return fmt.Errorf("insert order line: %w", err)
	}
	return nil
}

func nullID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func ptr[T any](o order.Optional[T]) *T {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	return &v
}
