package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-shop-core/internal/api"
	"github.com/example/ec-shop-core/internal/auth"
	"github.com/example/ec-shop-core/internal/config"
	"github.com/example/ec-shop-core/internal/domain/cart"
	"github.com/example/ec-shop-core/internal/domain/order"
	"github.com/example/ec-shop-core/internal/domain/user"
	"github.com/example/ec-shop-core/internal/infrastructure/cache"
	"github.com/example/ec-shop-core/internal/infrastructure/journal"
	"github.com/example/ec-shop-core/internal/infrastructure/kafka"
	mongostore "github.com/example/ec-shop-core/internal/infrastructure/mongo"
	"github.com/example/ec-shop-core/internal/pkg/logging"
	"github.com/example/ec-shop-core/internal/pkg/metrics"
	"github.com/example/ec-shop-core/internal/pkg/tracing"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.Load()
	if err != nil {
		logging.MustNewLogger("api", "dev").Fatal("load config", zap.Error(err))
	}

	logger := logging.MustNewLogger("api", cfg.Env)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	tp, shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		ServiceName: "ec-shop-api",
		Env:         cfg.Env,
		Exporter:    cfg.TracingExporter,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		logger.Fatal("setup tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("shutdown tracing", zap.Error(err))
		}
	}()
	if cfg.TracingExporter != tracing.ExporterNone {
		logger.Info("tracing enabled", zap.String("exporter", cfg.TracingExporter))
	}

	db, err := mongostore.ConnectMongoDB(ctx, cfg.MongoURI, cfg.DatabaseName)
	if err != nil {
		logger.Fatal("connect mongodb", zap.Error(err))
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Client().Disconnect(disconnectCtx); err != nil {
			logger.Warn("disconnect mongodb", zap.Error(err))
		}
	}()
	if err := mongostore.CreateIndexes(ctx, db); err != nil {
		logger.Fatal("create indexes", zap.Error(err))
	}
	logger.Info("connected to mongodb", zap.String("database", cfg.DatabaseName))

	var carts cart.Repository = mongostore.NewCarts(db)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		carts = cache.NewCartRepository(carts, redisClient, logger)
		logger.Info("cart cache enabled", zap.String("addr", cfg.RedisAddr))
	}

	var publisher journal.Publisher
	if cfg.KafkaEnabled() {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publisher = journal.NewBreakerPublisher(producer, journal.DefaultBreakerSettings, logger, m.PublishResult)
		logger.Info("publishing events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	j, closeJournal := openJournal(ctx, cfg, publisher, logger)
	defer closeJournal()

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)

	engine := cart.NewEngine(carts, mongostore.NewProducts(db), j, logger, cart.WithMetrics(m))
	placement := order.NewPlacement(mongostore.NewOrders(db), carts, j, logger, order.WithMetrics(m))
	users := user.NewService(mongostore.NewUsers(db), tokens, j, logger, user.WithPasswordHashing(cfg.HashPasswords))

	router := api.NewRouter(api.NewHandlers(engine, placement), api.NewAuthHandlers(users), api.RouterOptions{
		Tokens:         tokens,
		Metrics:        m,
		Logger:         logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
		TracerProvider: tp,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if cfg.RequestTimeout > 0 {
		server.ReadTimeout = cfg.RequestTimeout
		server.WriteTimeout = cfg.RequestTimeout + 5*time.Second
	}

	go func() {
		logger.Info("server started", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}

// openJournal selects the Postgres journal when DATABASE_URL is set and the
// in-memory one otherwise.
func openJournal(ctx context.Context, cfg *config.Config, publisher journal.Publisher, logger *zap.Logger) (journal.Journal, func()) {
	if cfg.PostgresURL == "" {
		logger.Info("using in-memory event journal")
		return journal.NewMemory(publisher, logger), func() {}
	}

	db, err := journal.ConnectPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	if err := journal.Migrate(db); err != nil {
		logger.Fatal("migrate event journal", zap.Error(err))
	}
	logger.Info("using postgres event journal")
	return journal.NewPostgres(db, publisher, logger), func() {
		if err := db.Close(); err != nil {
			logger.Warn("close postgres", zap.Error(err))
		}
	}
}
