package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giovaniif/vending-machine/domain/item"
	"github.com/giovaniif/vending-machine/domain/machine"
	"github.com/giovaniif/vending-machine/infra/config"
	"github.com/giovaniif/vending-machine/infra/gateways"
	"github.com/giovaniif/vending-machine/infra/loader"
	"github.com/giovaniif/vending-machine/infra/logging"
	"github.com/giovaniif/vending-machine/infra/loki"
	"github.com/giovaniif/vending-machine/infra/metrics"
	"github.com/giovaniif/vending-machine/infra/tracing"
	"github.com/giovaniif/vending-machine/protocols"
	"github.com/giovaniif/vending-machine/use_cases/deposit"
	"github.com/giovaniif/vending-machine/use_cases/query"
	"github.com/giovaniif/vending-machine/use_cases/vend"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func StartServer() {
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	sink := loki.NewWriter(cfg.LokiURL, map[string]string{"service": config.ServiceName})
	if sink != nil {
		defer sink.Close()
	}
	logger := logging.New(config.ServiceName, sink)
	defer logger.Sync()

	if shutdown := tracing.Init(config.ServiceName); shutdown != nil {
		defer shutdown()
		logger.Info("tracing enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inventory, err := loadInventory(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to load inventory", zap.String("source", cfg.InventorySource), zap.Error(err))
	}
	m, err := machine.New(inventory, machine.WithInitialBalance(cfg.InitialBalance))
	if err != nil {
		logger.Fatal("failed to build machine", zap.Error(err))
	}
	shared := machine.NewSynchronized(m)
	recordState(shared)
	logger.Info("inventory loaded",
		zap.String("source", cfg.InventorySource),
		zap.Int("items", len(inventory)),
		zap.Stringer("balance", cfg.InitialBalance),
	)

	var rdb *redis.Client
	var idempotencyGateway protocols.VendIdempotencyGateway
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory idempotency", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			idempotencyGateway = gateways.NewVendIdempotencyGatewayMemory()
		} else {
			idempotencyGateway = gateways.NewVendIdempotencyGatewayRedis(rdb)
			logger.Info("vend idempotency: redis (TTL 24h)")
		}
	} else {
		idempotencyGateway = gateways.NewVendIdempotencyGatewayMemory()
		logger.Info("vend idempotency: in-memory (set REDIS_ADDR for redis)")
	}

	var publisher protocols.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := gateways.NewEventPublisherKafka(gateways.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		logger.Info("vend events: kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	} else {
		publisher = gateways.NewEventPublisherLog(logger)
		logger.Info("vend events: log (set KAFKA_BROKERS for kafka)")
	}
	publisher = gateways.NewRetryingEventPublisher(publisher, gateways.NewSleeper(), cfg.EventMaxRetries, cfg.EventBaseDelay, logger)

	router := NewRouter(Dependencies{
		Vend:           vend.NewVend(shared, idempotencyGateway, publisher, logger),
		Deposit:        deposit.NewDeposit(shared, publisher, logger),
		Query:          query.NewQuery(shared),
		DepositAmount:  cfg.DepositAmount,
		RequestTimeout: cfg.RequestTimeout,
		Redis:          rdb,
		Logger:         logger,
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("vending machine is running", zap.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", zap.Error(err))
	}
}

func loadInventory(ctx context.Context, cfg *config.Config) (item.Inventory, error) {
	switch cfg.InventorySource {
	case config.SourceFile:
		return loader.NewPathSource(cfg.InventoryPath).Load(ctx)
	case config.SourcePostgres:
		db, err := loader.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return loader.NewPostgresSource(db, cfg.InventoryTable).Load(ctx)
	case config.SourceMongo:
		client, err := loader.OpenMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		defer client.Disconnect(context.Background())
		return loader.NewMongoSource(client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)).Load(ctx)
	default:
		return loader.NewPackagedSource().Load(ctx)
	}
}

func recordState(m machine.VendingMachine) {
	metrics.Balance.Set(m.AmountDeposited().InexactFloat64())
	for s, it := range m.Inventory() {
		metrics.StockLevel.WithLabelValues(s.String()).Set(it.Quantity.InexactFloat64())
	}
}
