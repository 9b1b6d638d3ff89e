package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/Namsummo/Lego-store/internal/config"
	httpDelivery "github.com/Namsummo/Lego-store/internal/delivery/http"
	"github.com/Namsummo/Lego-store/internal/delivery/ws"
	"github.com/Namsummo/Lego-store/internal/messaging"
	"github.com/Namsummo/Lego-store/internal/messaging/kafka"
	"github.com/Namsummo/Lego-store/internal/messaging/watermill"
	"github.com/Namsummo/Lego-store/internal/metrics"
	"github.com/Namsummo/Lego-store/internal/pending"
	"github.com/Namsummo/Lego-store/internal/repository"
	"github.com/Namsummo/Lego-store/internal/repository/memory"
	"github.com/Namsummo/Lego-store/internal/repository/postgres"
	"github.com/Namsummo/Lego-store/internal/service"
)

type stores struct {
	products repository.ProductRepository
	vouchers repository.VoucherRepository
	orders   repository.OrderRepository
	events   repository.EventStore
	db       *sql.DB
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Storage ---
	st, err := openStores(cfg)
	if err != nil {
		slog.Error("Failed to init store", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	if st.db != nil {
		defer st.db.Close()
	}

	if cfg.SeedCatalog {
		if err := seedCatalog(ctx, st.products, st.vouchers); err != nil {
			slog.Error("Failed to seed catalog", "err", err)
			os.Exit(1)
		}
	}

	// --- Broker ---
	broker, err := openBroker(cfg)
	if err != nil {
		slog.Error("Failed to init broker", "broker", cfg.Broker, "err", err)
		os.Exit(1)
	}
	defer broker.Close()

	// --- Pending queue store ---
	pendingStores, redisClient, err := openPendingStores(cfg)
	if err != nil {
		slog.Error("Failed to init pending order store", "store", cfg.PendingStore, "err", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// --- Services ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics(registry)

	orderSvc := service.NewOrderService(st.orders, st.products, st.vouchers, st.events, broker, serverMetrics)
	counterSvc := service.NewCounterService(st.products, st.vouchers, orderSvc, pendingStores)

	liveFeed := ws.NewHub()
	defer liveFeed.Close()

	handler := httpDelivery.NewHandler(orderSvc, counterSvc, serverMetrics, registry, liveFeed)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Start everything ---
	go broker.Consume(ctx, messaging.TopicOrderPlaced, "pos-order-projection", orderSvc.HandleOrderPlaced)
	go broker.Consume(ctx, messaging.TopicOrderStatusChanged, "pos-order-audit", orderSvc.HandleOrderStatusChanged)
	go broker.Consume(ctx, messaging.TopicOrderStatusChanged, "pos-live-feed", liveFeed.HandleStatusChanged)

	go func() {
		slog.Info("HTTP server starting", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "broker", cfg.Broker, "pending_store", cfg.PendingStore)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced to shutdown", "err", err)
	}
}

func setupLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func openStores(cfg *config.Config) (stores, error) {
	if cfg.StoreDriver == config.StoreMemory {
		catalog := memory.NewCatalog()
		return stores{
			products: memory.NewProductRepository(catalog),
			vouchers: memory.NewVoucherRepository(catalog),
			orders:   memory.NewOrderRepository(catalog),
			events:   memory.NewEventStore(),
		}, nil
	}

	db, err := postgres.InitDB(cfg.DatabaseURL)
	if err != nil {
		return stores{}, err
	}
	return stores{
		products: postgres.NewProductRepository(db),
		vouchers: postgres.NewVoucherRepository(db),
		orders:   postgres.NewOrderRepository(db),
		events:   postgres.NewEventStore(db),
		db:       db,
	}, nil
}

func openBroker(cfg *config.Config) (messaging.Broker, error) {
	switch cfg.Broker {
	case config.BrokerKafka:
		return kafka.NewKafkaBroker(cfg.KafkaBrokers), nil
	case config.BrokerWatermillKafka:
		b, err := watermill.NewKafkaBroker(cfg.KafkaBrokers, slog.Default())
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BrokerGoChannel:
		return watermill.NewGoChannelBroker(slog.Default()), nil
	default:
		return messaging.NewNopBroker(), nil
	}
}

func openPendingStores(cfg *config.Config) (service.PendingStoreFactory, *redis.Client, error) {
	switch cfg.PendingStore {
	case config.PendingRedis:
		client, err := pending.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return func(operatorID string) (pending.Store, error) {
			return pending.NewRedisStore(client, operatorID), nil
		}, client, nil
	case config.PendingMemory:
		return func(string) (pending.Store, error) {
			return pending.NewMemoryStore(), nil
		}, nil, nil
	default:
		return func(operatorID string) (pending.Store, error) {
			store, err := pending.NewFileStore(cfg.PendingDir, operatorID)
			if err != nil {
				return nil, err
			}
			return store, nil
		}, nil, nil
	}
}
