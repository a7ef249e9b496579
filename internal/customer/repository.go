package customer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrCustomerExists   = errors.New("customer with this email already exists")
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	GetByAuthID(ctx context.Context, authID string) (*Customer, error)
	GetByEmail(ctx context.Context, email string) (*Customer, error)
	Create(ctx context.Context, c *Customer) error
	// FillMissing writes the patch fields whose stored value is null or empty; it never overwrites.
	FillMissing(ctx context.Context, id uuid.UUID, patch Patch) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const selectCustomer = `
	SELECT id, auth_id, email, phone, first_name, last_name, address1, address2,
	       city, province, zip, country_code, type, created_at, updated_at
	FROM order_service.customers
`

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Customer, error) {
	return r.getOne(ctx, selectCustomer+" WHERE id = $1", id)
}

func (r *postgresRepository) GetByAuthID(ctx context.Context, authID string) (*Customer, error) {
	return r.getOne(ctx, selectCustomer+" WHERE auth_id = $1 ORDER BY created_at LIMIT 1", authID)
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*Customer, error) {
	return r.getOne(ctx, selectCustomer+" WHERE email = $1", email)
}

func (r *postgresRepository) getOne(ctx context.Context, query string, arg any) (*Customer, error) {
	var c Customer
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&c.ID,
		&c.AuthID,
		&c.Email,
		&c.Phone,
		&c.FirstName,
		&c.LastName,
		&c.Address1,
		&c.Address2,
		&c.City,
		&c.Province,
		&c.Zip,
		&c.CountryCode,
		&c.Type,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("repository: failed to select customer: %w", err)
	}

	return &c, nil
}

func (r *postgresRepository) Create(ctx context.Context, c *Customer) error {
	if c.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate customer ID: %w", err)
		}
		c.ID = id
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
		INSERT INTO order_service.customers (id, auth_id, email, phone, first_name, last_name, address1, address2,
			city, province, zip, country_code, type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.Exec(ctx, query,
		c.ID,
		c.AuthID,
		c.Email,
		c.Phone,
		c.FirstName,
		c.LastName,
		c.Address1,
		c.Address2,
		c.City,
		c.Province,
		c.Zip,
		c.CountryCode,
		c.Type,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrCustomerExists
		}
		return fmt.Errorf("repository: failed to insert customer: %w", err)
	}

	return nil
}

func (r *postgresRepository) FillMissing(ctx context.Context, id uuid.UUID, patch Patch) error {
	query := `
		UPDATE order_service.customers SET
			auth_id      = COALESCE(NULLIF(auth_id, ''), $2),
			phone        = COALESCE(NULLIF(phone, ''), $3),
			first_name   = COALESCE(NULLIF(first_name, ''), $4),
			last_name    = COALESCE(NULLIF(last_name, ''), $5),
			address1     = COALESCE(NULLIF(address1, ''), $6),
			address2     = COALESCE(NULLIF(address2, ''), $7),
			city         = COALESCE(NULLIF(city, ''), $8),
			province     = COALESCE(NULLIF(province, ''), $9),
			zip          = COALESCE(NULLIF(zip, ''), $10),
			country_code = COALESCE(NULLIF(country_code, ''), $11),
			updated_at   = $12
		WHERE id = $1
	`
	cmdTag, err := r.db.Exec(ctx, query,
		id,
		patch.AuthID,
		patch.Phone,
		patch.FirstName,
		patch.LastName,
		patch.Address1,
		patch.Address2,
		patch.City,
		patch.Province,
		patch.Zip,
		patch.CountryCode,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("repository: failed to fill customer %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}

	return nil
}
