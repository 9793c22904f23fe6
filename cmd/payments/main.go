package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ecomsvc/order-payments/internal/broker"
	"github.com/ecomsvc/order-payments/internal/config"
	"github.com/ecomsvc/order-payments/internal/logger"
	"github.com/ecomsvc/order-payments/internal/model"
	"github.com/ecomsvc/order-payments/internal/outbox"
	"github.com/ecomsvc/order-payments/internal/payments"
	httptransport "github.com/ecomsvc/order-payments/internal/transport/http"
)

func main() {
	cfgPath := flag.String("config", "configs/payments.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger("payments")
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(&model.Account{}, &model.InboxMessage{}, &model.OutboxMessage{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	repo := payments.NewRepository(gdb, rdb, log)
	svc := payments.NewService(repo, log)

	// outbox publisher: payments.result
	kw := broker.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.PublishTopic)
	defer kw.Close()
	worker := outbox.NewWorker(
		outbox.NewGormStore(gdb),
		broker.NewKafkaPublisher(kw),
		cfg.Outbox.Interval,
		cfg.Outbox.BatchSize,
		log,
	)
	go worker.Start(ctx)

	// inbox processor: debits accounts and stages replies
	processor := payments.NewProcessor(repo, cfg.Inbox.Interval, cfg.Inbox.BatchSize, log)
	go processor.Start(ctx)

	// consumer: orders.created -> inbox
	kr := broker.NewReader(cfg.Kafka.Brokers, cfg.Kafka.ConsumeTopic, cfg.Kafka.GroupID)
	defer kr.Close()
	consumer := broker.NewConsumerAdapter(kr, payments.NewOrderCreatedConsumer(repo, log), log)
	consumer.Start(ctx)

	router := httptransport.NewRouter(cfg.RateLimit, log)
	httptransport.RegisterAccountHandlers(router, svc)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}
	go func() {
		log.Infof("payments server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
	log.Info("payments service stopped")
}
