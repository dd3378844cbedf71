package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stallwise/stallwise-orders-service/internal/clients"
	"github.com/stallwise/stallwise-orders-service/internal/config"
	"github.com/stallwise/stallwise-orders-service/internal/events"
	"github.com/stallwise/stallwise-orders-service/internal/gateway"
	"github.com/stallwise/stallwise-orders-service/internal/handlers"
	"github.com/stallwise/stallwise-orders-service/internal/logging"
	"github.com/stallwise/stallwise-orders-service/internal/repository"
	"github.com/stallwise/stallwise-orders-service/internal/server"
	"github.com/stallwise/stallwise-orders-service/internal/service"

	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()

	logger := logging.New("orders-service")

	// A service without signing credentials can neither charge nor verify
	// notifications, so refuse to start at all.
	if err := cfg.Gateway.Validate(); err != nil {
		logger.Fatal("Invalid gateway configuration", logging.Fields{"error": err.Error()})
	}

	db, err := initDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", logging.Fields{"error": err.Error()})
	}
	defer db.Close()

	store := repository.NewPostgresStore(db)

	var cache repository.OrderCache = repository.NoopOrderCache{}
	if cfg.Features.EnableOrderCaching {
		cache = repository.NewRedisOrderCache(cfg.Redis)
	}

	var publisher events.Publisher
	if cfg.Features.EnableOrderEvents {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	adapter := gateway.NewAdapter(cfg.Gateway)
	cartClient := clients.NewHTTPCartClient(cfg.CartService)
	notificationClient := clients.NewHTTPNotificationClient(cfg.NotificationService)

	machine := service.NewStateMachine(store, cache, publisher, notificationClient)
	checkout := service.NewCheckoutService(store, cache, adapter, cartClient, publisher)
	reconcile := service.NewReconcileService(store, adapter, machine)

	h := handlers.NewHandlers(checkout, machine, reconcile, cfg)
	srv := server.New(h, cfg)

	go func() {
		logger.Info("Server starting", logging.Fields{
			"port":           cfg.Server.Port,
			"order_caching":  cfg.Features.EnableOrderCaching,
			"order_events":   cfg.Features.EnableOrderEvents,
			"gateway_notify": cfg.Gateway.NotifyURL,
		})
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", logging.Fields{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", logging.Fields{"error": err.Error()})
	}

	logger.Info("Server exited", nil)
}

func initDatabase(cfg *config.Config, logger *logging.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	logger.Info("Database connected", logging.Fields{
		"host": cfg.Database.Host,
		"name": cfg.Database.Name,
	})

	return db, nil
}
