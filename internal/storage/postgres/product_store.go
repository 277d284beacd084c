// Package postgres persists extracted products in a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/product-crawler/internal/crawler"
)

const defaultTable = "products"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for product rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ProductStore upserts products keyed by domain and product id.
type ProductStore struct {
	pool   execCloser
	table  string
	domain string
}

var _ crawler.ProductSink = (*ProductStore)(nil)

// NewProductStore connects to Postgres using cfg.
func NewProductStore(ctx context.Context, cfg Config, domain string) (*ProductStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ProductStore{pool: pool, table: table, domain: domain}, nil
}

// NewProductStoreWithPool wraps an existing pool.
func NewProductStoreWithPool(pool execCloser, table, domain string) (*ProductStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &ProductStore{pool: pool, table: table, domain: domain}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the product table when it does not exist.
func (s *ProductStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	domain        text NOT NULL,
	product_id    text NOT NULL,
	name          text NOT NULL,
	description   text NOT NULL DEFAULT '',
	keywords      text NOT NULL DEFAULT '',
	barcode       text NOT NULL,
	price         numeric NOT NULL,
	weight_grams  integer NOT NULL,
	dimensions_mm integer[] NOT NULL,
	updated_at    timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (domain, product_id)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Publish upserts product.
func (s *ProductStore) Publish(ctx context.Context, product crawler.Product) error {
	if product.ID == "" {
		return fmt.Errorf("product id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	domain,
	product_id,
	name,
	description,
	keywords,
	barcode,
	price,
	weight_grams,
	dimensions_mm
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (domain, product_id) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	keywords = EXCLUDED.keywords,
	barcode = EXCLUDED.barcode,
	price = EXCLUDED.price,
	weight_grams = EXCLUDED.weight_grams,
	dimensions_mm = EXCLUDED.dimensions_mm,
	updated_at = now()`, s.table)

	dims := make([]int32, len(product.DimensionsMM))
	for i, d := range product.DimensionsMM {
		dims[i] = int32(d)
	}
	args := []any{
		s.domain,
		product.ID,
		product.Name,
		product.Description,
		product.Keywords,
		product.Barcode,
		product.Price.String(),
		product.WeightGrams,
		dims,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert product %s: %w", product.ID, err)
	}
	return nil
}

// Close releases the pool.
func (s *ProductStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
