package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jobfield/payment-engine/internal/api"
	"github.com/jobfield/payment-engine/internal/config"
	"github.com/jobfield/payment-engine/internal/events"
	"github.com/jobfield/payment-engine/internal/gateway"
	"github.com/jobfield/payment-engine/internal/handlers"
	"github.com/jobfield/payment-engine/internal/lock"
	"github.com/jobfield/payment-engine/internal/repository"
	"github.com/jobfield/payment-engine/internal/service"
	"github.com/jobfield/payment-engine/internal/telemetry"
	"github.com/jobfield/payment-engine/internal/worker"
)

func main() {
	cfg := config.Load()

	if err := telemetry.Init("payment-engine"); err != nil {
		panic(fmt.Sprintf("failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	log := telemetry.Logger
	log.Info("starting payment engine")

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ledger := repository.NewTransactionRepository(db)
	if err := ledger.InitDB(); err != nil {
		log.Fatal("failed to initialize transactions table", zap.Error(err))
	}
	marketplace := repository.NewMarketplaceRepository(db)
	if err := marketplace.InitDB(); err != nil {
		log.Fatal("failed to initialize payments table", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})
	locker := lock.NewRedisLocker(redisClient)

	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		log.Fatal("failed to connect to NATS", zap.Error(err))
	}
	defer nc.Close()
	notifier := events.NewNatsNotifier(nc)

	statePublisher := events.NewKafkaPublisher(cfg.KafkaBrokers)
	defer statePublisher.Close()

	gw := gateway.NewClient(gateway.Config{
		BaseURL:        cfg.GatewayBaseURL,
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		Shortcode:      cfg.Shortcode,
		Passkey:        cfg.Passkey,
		CallbackURL:    cfg.CallbackURL,
		TokenTTL:       cfg.TokenTTL,
	}, log)

	router := service.NewRouter(
		service.NewBidFeeHandler(marketplace, notifier, log),
		service.NewSkillFeeHandler(marketplace, notifier, log),
	)
	initiator := service.NewInitiator(ledger, gw, log)
	ingestor := service.NewIngestor(ledger, locker, statePublisher, router, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reconciler := worker.NewReconciler(ledger, gw, ingestor, cfg.ReconcileAge, cfg.ReconcileInterval, log)
	go reconciler.Run(ctx)

	paymentHandler := handlers.NewPaymentHandler(initiator, ingestor, ledger, log)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.NewRouter(paymentHandler),
	}

	go func() {
		log.Info("payment engine listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
