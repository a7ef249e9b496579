package catalog

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Repository is the catalog lookup used by order creation. It never writes.
type Repository interface {
	// GetProducts returns the products found for ids, keyed by id. Unknown ids are absent.
	GetProducts(ctx context.Context, ids []string) (map[string]Product, error)
	// GetVariants returns the variants found for ids, keyed by id. Unknown ids are absent.
	GetVariants(ctx context.Context, ids []string) (map[string]Variant, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetProducts(ctx context.Context, ids []string) (map[string]Product, error) {
	products := make(map[string]Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	// Arrays are cast to text so pq.StringArray can parse them through database/sql.
	query, args, err := sqlx.In(`
		SELECT id, title, sizes::text AS sizes, colors::text AS colors, fulfillment_partner
		FROM order_service.products
		WHERE id IN (?)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to build products query: %w", err)
	}

	var rows []Product
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("catalog: failed to select products: %w", err)
	}

	for _, p := range rows {
		products[p.ID] = p
	}

	return products, nil
}

func (r *postgresRepository) GetVariants(ctx context.Context, ids []string) (map[string]Variant, error) {
	variants := make(map[string]Variant, len(ids))
	if len(ids) == 0 {
		return variants, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, product_id, size, color
		FROM order_service.product_variants
		WHERE id IN (?)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to build variants query: %w", err)
	}

	var rows []Variant
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("catalog: failed to select variants: %w", err)
	}

	for _, v := range rows {
		variants[v.ID] = v
	}

	return variants, nil
}
