package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"storefront/internal/carrier"
	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/events"
	"storefront/internal/fulfillment"
	"storefront/internal/handler"
	"storefront/internal/order"
	"storefront/internal/payment"
	"storefront/internal/shipping"
	"storefront/internal/transport"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "storefront").Logger()

	log.Info().Msg("Storefront fulfillment service starting...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	dbConn, err := db.New(context.Background(), cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	kafkaWriter := events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer kafkaWriter.Close()

	orderRepo := order.NewRepository(dbConn.Pool)
	productRepo := catalog.NewRepository(dbConn.Pool)
	logRepo := fulfillment.NewLogRepository(dbConn.Pool)

	gateway := carrier.New(carrier.Config{
		BaseURL:        cfg.Carrier.BaseURL,
		Email:          cfg.Carrier.Email,
		Password:       cfg.Carrier.Password,
		PickupLocation: cfg.Carrier.PickupLocation,
		Timeout:        cfg.Carrier.Timeout,
	})

	calculator := shipping.NewCalculator(productRepo)

	orchestrator := fulfillment.NewService(orderRepo, logRepo, gateway, calculator,
		fulfillment.WithLocker(fulfillment.NewRedisLocker(rdb)),
		fulfillment.WithPublisher(events.NewKafkaPublisher(kafkaWriter)),
	)

	paymentHandler := payment.NewHandler(orderRepo, orchestrator, logRepo, cfg.Webhook.Secret)

	router := transport.NewRouter(transport.Handlers{
		Orders:      handler.NewOrderHandler(order.NewService(orderRepo)),
		Fulfillment: handler.NewFulfillmentHandler(orchestrator),
		Webhooks:    handler.NewWebhookHandler(paymentHandler),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
