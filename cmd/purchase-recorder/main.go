package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ms-seating/internal/config"
	"ms-seating/internal/database"
	"ms-seating/internal/kafka"
	"ms-seating/internal/logger"
	passdb "ms-seating/internal/passes/db"
)

// purchase-recorder drains the passes-purchased topic into purchase_logs.
func main() {
	_ = godotenv.Load() // Loads .env file if present

	log := logger.NewLogger("purchase-recorder")
	defer log.Close()

	cfg := config.Load()
	log.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if len(cfg.Kafka.Brokers) == 0 {
		log.Fatal("KAFKA", "KAFKA_BROKERS not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	topic := cfg.Kafka.Topics.PassesPurchased
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{topic}, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, topic, cfg.Kafka.GroupID, log)
	defer consumer.Close()

	log.Info("APP", fmt.Sprintf("Recording purchases from %s", topic))
	if err := consumer.Start(ctx, kafka.PurchaseHandler(&passdb.DB{Bun: bunDB})); err != nil && ctx.Err() == nil {
		log.Fatal("KAFKA", err.Error())
	}
	log.Info("APP", "✅ Purchase recorder stopped")
}
