package customer_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/storefront-orders/internal/config"
	"github.com/vasiliy-maslov/storefront-orders/internal/customer"
	"github.com/vasiliy-maslov/storefront-orders/internal/db"
)

var testDB *db.Postgres

func TestMain(m *testing.M) {
	if host := os.Getenv("DB_HOST_TEST"); host != "" {
		var err error
		testDB, err = db.New(context.Background(), config.PostgresConfig{
			Host:            host,
			Port:            getenv("DB_PORT_TEST", "5432"),
			User:            getenv("DB_USER_TEST", "postgres"),
			Password:        getenv("DB_PASSWORD_TEST", "postgres"),
			DBName:          getenv("DB_NAME_TEST", "orders_test"),
			SSLMode:         "disable",
			MaxConns:        5,
			MinConns:        1,
			MaxConnLifetime: 5 * time.Minute,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to test database")
		}
		if err := testDB.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate test database")
		}
	}

	exitCode := m.Run()

	if testDB != nil {
		testDB.Close()
	}
	os.Exit(exitCode)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setupRepository(t *testing.T) customer.Repository {
	t.Helper()
	if testDB == nil {
		t.Skip("DB_HOST_TEST not set, skipping repository integration test")
	}

	truncate := func() {
		_, err := testDB.Pool.Exec(context.Background(), "TRUNCATE TABLE order_service.customers CASCADE")
		require.NoError(t, err)
	}
	truncate()
	t.Cleanup(truncate)

	return customer.NewRepository(testDB.Pool)
}

func TestPostgresRepository_CreateAndLookup(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	c := &customer.Customer{AuthID: strPtr("user-1"), Email: "asha@example.com", City: strPtr("Pune"), Type: customer.TypeShipping}
	require.NoError(t, repo.Create(ctx, c))

	byEmail, err := repo.GetByEmail(ctx, "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byEmail.ID)

	byAuth, err := repo.GetByAuthID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byAuth.ID)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, customer.ErrCustomerNotFound)
}

func TestPostgresRepository_DuplicateEmail(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &customer.Customer{Email: "asha@example.com", Type: customer.TypeShipping}))
	err := repo.Create(ctx, &customer.Customer{Email: "asha@example.com", Type: customer.TypeShipping})
	assert.ErrorIs(t, err, customer.ErrCustomerExists)
}

func TestPostgresRepository_FillMissingNeverOverwrites(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	c := &customer.Customer{Email: "asha@example.com", City: strPtr("Pune"), Province: strPtr(""), Type: customer.TypeShipping}
	require.NoError(t, repo.Create(ctx, c))

	require.NoError(t, repo.FillMissing(ctx, c.ID, customer.Patch{City: strPtr("Mumbai"), Province: strPtr("Maharashtra"), Zip: strPtr("411001")}))

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pune", *got.City)
	assert.Equal(t, "Maharashtra", *got.Province)
	assert.Equal(t, "411001", *got.Zip)
}
