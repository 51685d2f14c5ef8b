package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"order_payment/internal/config"
	"order_payment/internal/ledger"
	"order_payment/internal/payment"
	"order_payment/internal/queue"
	"order_payment/internal/store"
	rediskey "order_payment/pkg/redis"

	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// executor drains the transfer outbox: stream -> Kafka (relay), Kafka -> ledger
// (consumer). The sweeper re-dispatches transfers whose enqueue was lost and
// settles submitted ones from their ledger receipts.
func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("component", "executor")
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Error("open db", "err", err)
		os.Exit(1)
	}

	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("redis ping", "addr", cfg.RedisAddr, "err", err)
		os.Exit(1)
	}

	client, err := ledger.Open(cfg)
	if err != nil {
		log.Error("open ledger", "err", err)
		os.Exit(1)
	}

	dispatcher := queue.NewStreamDispatcher(rdb, cfg.TransferStream, cfg.SweepAfter/2)
	app, err := loadApp(ctx, db, dispatcher, rdb, cfg, log)
	if err != nil {
		log.Error("load app", "err", err)
		os.Exit(1)
	}
	exec := payment.NewExecutor(app, client, cfg.TransferTimeout)

	producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	relay := queue.NewRelay(rdb, producer, cfg.TransferStream, cfg.TransferGroup, cfg.TransferConsumer, log)
	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, exec, log)
	sweeper := queue.NewSweeper(app, cfg.SweepInterval, cfg.SweepAfter, log).
		WithReconciler(exec, cfg.ReconcileAfter)

	var wg sync.WaitGroup
	for _, run := range []func(context.Context){relay.Run, consumer.Run, sweeper.Run} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(run)
	}
	log.Info("executor running", "topic", cfg.KafkaTopic, "stream", cfg.TransferStream)

	<-ctx.Done()
	log.Info("shutting down")
	wg.Wait()
	if err := consumer.Close(); err != nil {
		log.Warn("close consumer", "err", err)
	}
	if err := producer.Close(); err != nil {
		log.Warn("close producer", "err", err)
	}
}

// loadApp waits for the API to initialize the service on first deploy.
func loadApp(ctx context.Context, db *gorm.DB, d payment.Dispatcher, rdb *rd.Client, cfg config.AppConfig, log *slog.Logger) (*payment.App, error) {
	for {
		app, err := payment.Load(ctx, db, d,
			payment.WithLocker(rediskey.NewOrderLocker(rdb, cfg.OrderLockTTL, 2*time.Second)),
			payment.WithTransferCache(rediskey.NewTransferStateCache(rdb, cfg.TransferStateTTL)),
			payment.WithLogger(log),
		)
		if !errors.Is(err, payment.ErrNotInitialized) {
			return app, err
		}
		log.Info("service not initialized yet, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}
