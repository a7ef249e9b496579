package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/storefront-orders/internal/auth"
	"github.com/vasiliy-maslov/storefront-orders/internal/cache"
	"github.com/vasiliy-maslov/storefront-orders/internal/catalog"
	"github.com/vasiliy-maslov/storefront-orders/internal/config"
	"github.com/vasiliy-maslov/storefront-orders/internal/customer"
	"github.com/vasiliy-maslov/storefront-orders/internal/db"
	"github.com/vasiliy-maslov/storefront-orders/internal/handler"
	"github.com/vasiliy-maslov/storefront-orders/internal/invoice"
	"github.com/vasiliy-maslov/storefront-orders/internal/order"
	"github.com/vasiliy-maslov/storefront-orders/internal/transport"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "order-service").Logger()

	log.Info().Msg("Order service starting...")

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	log.Debug().
		Str("port", cfg.App.Port).
		Str("db_host", cfg.Postgres.Host).
		Str("redis_addr", cfg.Redis.Addr).
		Str("number_prefix", cfg.Orders.NumberPrefix).
		Msg("Configuration loaded")

	ctx := context.Background()

	dbConn, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	if err := dbConn.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	var invalidator cache.Invalidator = cache.Noop{}
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer redisClient.Close()
		invalidator = cache.NewRedisInvalidator(redisClient)
	} else {
		log.Warn().Msg("REDIS_ADDR not set, cache invalidation disabled")
	}

	customerRepository := customer.NewRepository(dbConn.Pool)
	orderSvc := order.NewService(order.ServiceDeps{
		Orders:          order.NewRepository(dbConn.Pool),
		Catalog:         catalog.NewRepository(dbConn.SQL),
		Customers:       customerRepository,
		Resolver:        customer.NewResolver(customerRepository),
		Numbers:         order.NewSequenceNumberGenerator(dbConn.Pool, cfg.Orders.NumberPrefix),
		Cache:           invalidator,
		Renderer:        invoice.NewRenderer(cfg.Invoice),
		RecentOrdersKey: cfg.Redis.RecentOrdersKey,
		Partners:        cfg.Orders.FulfillmentPartners,
	})

	router := transport.NewRouter(auth.NewVerifier(cfg.Auth.JWTSecret), handler.NewOrderHandler(orderSvc))

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
