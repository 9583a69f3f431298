package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"ms-seating/internal/auth"
	"ms-seating/internal/clock"
	"ms-seating/internal/config"
	"ms-seating/internal/database"
	"ms-seating/internal/database/migrations"
	"ms-seating/internal/kafka"
	"ms-seating/internal/logger"
	"ms-seating/internal/occupancy"
	occdb "ms-seating/internal/occupancy/db"
	"ms-seating/internal/occupancy/occupancy_api"
	"ms-seating/internal/passes/qr"
	seatredis "ms-seating/internal/seats/redis"
	"ms-seating/internal/sse"
	"ms-seating/internal/utils"
)

func prepareSchema(ctx context.Context, cfg *config.Config, db *bun.DB, log *logger.Logger) error {
	if cfg.Database.Driver == database.DriverSQLite {
		if err := database.CreateSchema(ctx, db); err != nil {
			return err
		}
		if cfg.Migrations.Seed {
			return database.SeedCatalog(ctx, db)
		}
		return nil
	}

	opts := migrations.OptionsFrom(cfg.Migrations)
	if !opts.AutoMigrate {
		log.Info("MIGRATE", "Auto migration disabled")
		return nil
	}
	// Not closed: closing the migrator closes db as well.
	return migrations.NewRunner(db, opts, log).RunMigrations()
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection error: %w", err)
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client, nil
}

func tokenVerifier(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) (auth.TokenVerifier, error) {
	if cfg.OIDCIssuer != "" {
		log.Info("AUTH", fmt.Sprintf("Verifying tokens against issuer %s", cfg.OIDCIssuer))
		return auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
	}
	if cfg.JWTSecret == "" {
		log.Warn("AUTH", "JWT_SECRET not set, every authenticated request will be rejected")
	}
	return auth.NewHMACVerifier(cfg.JWTSecret), nil
}

func main() {
	log := logger.NewLogger("seating-service")
	defer log.Close()

	log.Info("APP", "Starting Seating Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()
	log.SetLevel(logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if err := prepareSchema(ctx, cfg, bunDB, log); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}

	store := occdb.New(bunDB)
	emitter := sse.NewSeatEventEmitter()
	publishers := occupancy.Publishers{emitter}
	var purchases occupancy.PurchaseRecorder = store.PurchaseRecorder()

	var scheduler *seatredis.ExpiryScheduler
	if cfg.Redis.Enabled {
		client, err := connectRedis(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal("REDIS", err.Error())
		}
		defer client.Close()
		scheduler = seatredis.NewExpiryScheduler(client, cfg.Redis.KeyPrefix, log)
		scheduler.EnableNotifications(ctx)
		publishers = append(publishers, scheduler)
	}

	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.SeatStatus, cfg.Kafka.Topics.PassesPurchased}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()
		publishers = append(publishers, &kafka.SeatEventPublisher{Producer: producer, Topic: cfg.Kafka.Topics.SeatStatus})
		purchases = &kafka.PurchasePublisher{Producer: producer, Topic: cfg.Kafka.Topics.PassesPurchased}
		log.Info("KAFKA", "Kafka producer initialized successfully")
	}

	clk := clock.NewSystem()
	svc := occupancy.NewService(store, clk, log,
		occupancy.WithPublisher(publishers),
		occupancy.WithPurchaseRecorder(purchases),
	)

	if len(cfg.Seating.SeatLabels) > 0 {
		seats, err := svc.ProvisionSeats(ctx, cfg.Seating.SeatLabels...)
		if err != nil {
			log.Fatal("DATABASE", err.Error())
		}
		log.LogDatabase("PROVISION", "seats", fmt.Sprintf("%d seats available", len(seats)))
	}

	verifier, err := tokenVerifier(ctx, cfg.Auth, log)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}

	var qrGen *qr.QRGenerator
	if cfg.Seating.QRSecret != "" {
		if qrGen, err = qr.NewQRGenerator(cfg.Seating.QRSecret, cfg.Seating.QRCodeTTL); err != nil {
			log.Fatal("CONFIG", err.Error())
		}
	} else {
		log.Warn("CONFIG", "QR_SECRET not set, entry codes are disabled")
	}

	handler := &occupancy_api.Handler{Service: svc, QR: qrGen, Clock: clk, Logger: log}
	sseHandler := occupancy_api.NewSSEHandler(log, emitter)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(occupancy_api.RequestLogger(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := bunDB.PingContext(r.Context()); err != nil {
			utils.WriteError(w, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
		utils.WriteSuccess(w, http.StatusOK, "OK", nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
			handler.RegisterPublicRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(auth.Middleware(verifier, log))
				handler.RegisterRoutes(r)
			})
		})

		r.With(auth.Middleware(verifier, log)).Get("/seats/stream", sseHandler.HandleSeatStream)
	})
	log.Info("ROUTER", "Routes registered under /api")

	go svc.RunSweeper(ctx, cfg.Seating.SweepInterval)

	if scheduler != nil {
		go func() {
			err := scheduler.Subscribe(ctx, func(ctx context.Context, seatID int64) {
				res, err := svc.SweepSeat(ctx, seatID)
				if err != nil {
					log.Error("SWEEP", fmt.Sprintf("Expiry sweep of seat %d failed: %v", seatID, err))
					return
				}
				if res != nil {
					log.LogSeat("EXPIRE", seatID, fmt.Sprintf("pass %s freed by expiry notification", res.PassID))
				}
			})
			if err != nil {
				log.Error("REDIS", err.Error())
			}
		}()
	}

	// Seat streams stay open, so the write deadline is enforced per route above.
	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
		// Open streams end with ctx instead of holding up Shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Seating Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP", fmt.Sprintf("HTTP server error: %v", err))
			stop()
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Seating Service shutdown complete")
	}
}
