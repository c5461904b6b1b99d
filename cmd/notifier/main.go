package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-shop-core/internal/config"
	"github.com/example/ec-shop-core/internal/email"
	"github.com/example/ec-shop-core/internal/infrastructure/kafka"
	mongostore "github.com/example/ec-shop-core/internal/infrastructure/mongo"
	"github.com/example/ec-shop-core/internal/notification"
	"github.com/example/ec-shop-core/internal/pkg/logging"
	"go.uber.org/zap"
)

// consumerGroup is dedicated to order confirmation mails so the notifier
// reads every event independently of other consumers.
const consumerGroup = "email-notifier"

func main() {
	cfg, err := config.LoadNotifier()
	if err != nil {
		logging.MustNewLogger("notifier", "dev").Fatal("load config", zap.Error(err))
	}

	logger := logging.MustNewLogger("notifier", cfg.Env)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	mailer := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notification.NewHandler(mailer, mongostore.NewUsers(db), mongostore.NewProducts(db), logger)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, consumerGroup, logger)
	defer consumer.Close()

	logger.Info("notifier started",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group", consumerGroup),
		zap.String("smtp", cfg.SMTPHost+":"+cfg.SMTPPort),
	)
	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", zap.Error(err))
	}
	logger.Info("shutting down")
}
