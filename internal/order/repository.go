package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/storefront-orders/internal/customer"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrAddressNotFound = errors.New("order address not found")
)

// Repository is the order store. Order and item inserts are separate calls so the service can
// compensate a failed item insert by deleting the order.
type Repository interface {
	InsertOrder(ctx context.Context, o *Order) error
	InsertItems(ctx context.Context, orderID uuid.UUID, items []Item) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	GetByNumber(ctx context.Context, number string) (*Order, error)
	GetItems(ctx context.Context, orderID uuid.UUID) ([]Item, error)
	GetPayment(ctx context.Context, orderID uuid.UUID) (*Payment, error)
	GetLegacyAddress(ctx context.Context, orderID uuid.UUID) (*customer.Address, error)
	UpdateShipment(ctx context.Context, id uuid.UUID, upd ShipmentUpdate) error
	AppendStatusHistory(ctx context.Context, change StatusChange) error
	UpdateFulfillmentPartner(ctx context.Context, id uuid.UUID, partner *string) error
	UpdatePartnerOrderID(ctx context.Context, id uuid.UUID, partnerOrderID *string) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const orderColumns = `
	id, order_number, customer_id, email, customer_name, status, payment_status, gateway,
	subtotal, tax_amount, shipping_cost, cod_fee, total_amount,
	fulfillment_partner, partner_order_id, shipping_partner, tracking_number, tracking_url,
	shipped_at, delivered_at, created_at, updated_at
`

func (r *postgresRepository) InsertOrder(ctx context.Context, o *Order) error {
	query := `
		INSERT INTO order_service.orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err := r.db.Exec(ctx, query,
		o.ID,
		o.Number,
		o.CustomerID,
		o.Email,
		o.CustomerName,
		string(o.Status),
		string(o.PaymentStatus),
		string(o.Gateway),
		o.Subtotal,
		o.TaxAmount,
		o.ShippingCost,
		o.CODFee,
		o.TotalAmount,
		o.FulfillmentPartner,
		o.PartnerOrderID,
		o.ShippingPartner,
		o.TrackingNumber,
		o.TrackingURL,
		o.ShippedAt,
		o.DeliveredAt,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order %s: %w", o.Number, err)
	}

	return nil
}

// InsertItems writes all items in one transaction: either every item lands or none does.
func (r *postgresRepository) InsertItems(ctx context.Context, orderID uuid.UUID, items []Item) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Stringer("order_id", orderID).Msg("repository: failed to rollback order items")
			}
		}
	}()

	query := `
		INSERT INTO order_service.order_items (id, order_id, position, product_id, product_name, size, color,
			quantity, unit_price, total_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	// Position follows the slice so reads return items in cart order.
	batch := &pgx.Batch{}
	for i, item := range items {
		batch.Queue(query,
			item.ID,
			orderID,
			i,
			item.ProductID,
			item.ProductName,
			item.Size,
			item.Color,
			item.Quantity,
			item.UnitPrice,
			item.TotalPrice,
			item.CreatedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range items {
		if _, err = results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", orderID, err)
		}
	}
	if err = results.Close(); err != nil {
		return fmt.Errorf("repository: failed to close item batch for order %s: %w", orderID, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit order items for order %s: %w", orderID, err)
	}

	return nil
}

func (r *postgresRepository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM order_service.orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete order %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (r *postgresRepository) GetByNumber(ctx context.Context, number string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM order_service.orders WHERE order_number = $1`

	var o Order
	err := r.db.QueryRow(ctx, query, number).Scan(
		&o.ID,
		&o.Number,
		&o.CustomerID,
		&o.Email,
		&o.CustomerName,
		&o.Status,
		&o.PaymentStatus,
		&o.Gateway,
		&o.Subtotal,
		&o.TaxAmount,
		&o.ShippingCost,
		&o.CODFee,
		&o.TotalAmount,
		&o.FulfillmentPartner,
		&o.PartnerOrderID,
		&o.ShippingPartner,
		&o.TrackingNumber,
		&o.TrackingURL,
		&o.ShippedAt,
		&o.DeliveredAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by number %s: %w", number, err)
	}

	return &o, nil
}

func (r *postgresRepository) GetItems(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	query := `
		SELECT id, order_id, position, product_id, product_name, size, color, quantity, unit_price, total_price, created_at
		FROM order_service.order_items
		WHERE order_id = $1
		ORDER BY position, id
	`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for order id %s: %w", orderID, err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.Position,
			&item.ProductID,
			&item.ProductName,
			&item.Size,
			&item.Color,
			&item.Quantity,
			&item.UnitPrice,
			&item.TotalPrice,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for order id %s: %w", orderID, err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items for order id %s: %w", orderID, err)
	}

	return items, nil
}

func (r *postgresRepository) GetPayment(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	query := `
		SELECT id, order_id, gateway, gateway_reference, amount, status, created_at
		FROM order_service.payments
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var p Payment
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&p.ID,
		&p.OrderID,
		&p.Gateway,
		&p.GatewayReference,
		&p.Amount,
		&p.Status,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("repository: failed to select payment for order %s: %w", orderID, err)
	}

	return &p, nil
}

func (r *postgresRepository) GetLegacyAddress(ctx context.Context, orderID uuid.UUID) (*customer.Address, error) {
	query := `
		SELECT COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(phone, ''),
		       COALESCE(address1, ''), COALESCE(address2, ''), COALESCE(city, ''),
		       COALESCE(province, ''), COALESCE(zip, ''), COALESCE(country_code, '')
		FROM order_service.order_addresses
		WHERE order_id = $1
	`

	var a customer.Address
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&a.FirstName,
		&a.LastName,
		&a.Phone,
		&a.Address1,
		&a.Address2,
		&a.City,
		&a.Province,
		&a.Zip,
		&a.CountryCode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("repository: failed to select legacy address for order %s: %w", orderID, err)
	}

	return &a, nil
}

func (r *postgresRepository) UpdateShipment(ctx context.Context, id uuid.UUID, upd ShipmentUpdate) error {
	query := `
		UPDATE order_service.orders SET
			status           = $2,
			shipping_partner = COALESCE($3, shipping_partner),
			tracking_number  = COALESCE($4, tracking_number),
			tracking_url     = COALESCE($5, tracking_url),
			shipped_at       = COALESCE($6, shipped_at),
			delivered_at     = COALESCE($7, delivered_at),
			updated_at       = $8
		WHERE id = $1
	`

	cmdTag, err := r.db.Exec(ctx, query,
		id,
		string(upd.Status),
		upd.ShippingPartner,
		upd.TrackingNumber,
		upd.TrackingURL,
		upd.ShippedAt,
		upd.DeliveredAt,
		time.Now().UTC(),
	)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", id).Stringer("new_status", upd.Status).Msg("repository: failed to update order status")
		return fmt.Errorf("repository: failed to update order status %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		log.Warn().Stringer("order_id", id).Stringer("new_status", upd.Status).Msg("repository: order not found for status update")
		return ErrOrderNotFound
	}

	return nil
}

func (r *postgresRepository) AppendStatusHistory(ctx context.Context, change StatusChange) error {
	query := `
		INSERT INTO order_service.order_status_history (id, order_id, old_status, new_status, actor, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		change.ID,
		change.OrderID,
		string(change.OldStatus),
		string(change.NewStatus),
		change.Actor,
		change.Note,
		change.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to append status history for order %s: %w", change.OrderID, err)
	}

	return nil
}

func (r *postgresRepository) UpdateFulfillmentPartner(ctx context.Context, id uuid.UUID, partner *string) error {
	return r.updateColumn(ctx, id, "fulfillment_partner", partner)
}

func (r *postgresRepository) UpdatePartnerOrderID(ctx context.Context, id uuid.UUID, partnerOrderID *string) error {
	return r.updateColumn(ctx, id, "partner_order_id", partnerOrderID)
}

// updateColumn sets a nullable text column. column is always a constant from this file.
func (r *postgresRepository) updateColumn(ctx context.Context, id uuid.UUID, column string, value *string) error {
	query := `UPDATE order_service.orders SET ` + column + ` = $2, updated_at = $3 WHERE id = $1`

	cmdTag, err := r.db.Exec(ctx, query, id, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: failed to update %s for order %s: %w", column, id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}
