package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"order_payment/internal/config"
	"order_payment/internal/ledger"
	"order_payment/internal/payment"
	"order_payment/internal/queue"
	"order_payment/internal/router"
	"order_payment/internal/store"
	rediskey "order_payment/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. database, schema and first-boot initialization
	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Error("open db", "err", err)
		os.Exit(1)
	}
	if cfg.OwnerID != "" && cfg.FungibleContractID != "" {
		_, err := payment.Initialize(ctx, db, cfg.OwnerID, cfg.FungibleContractID)
		if err != nil && !errors.Is(err, payment.ErrAlreadyInitialized) {
			log.Error("initialize", "err", err)
			os.Exit(1)
		}
	}

	// 2. redis: order locks, transfer state cache, rate limit, outbox
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("redis ping", "addr", cfg.RedisAddr, "err", err)
		os.Exit(1)
	}
	locker := rediskey.NewOrderLocker(rdb, cfg.OrderLockTTL, 2*time.Second)
	cache := rediskey.NewTransferStateCache(rdb, cfg.TransferStateTTL)

	// 3. dispatch: in process, or onto the stream for cmd/executor
	var (
		dispatcher payment.Dispatcher
		local      *payment.LocalDispatcher
		client     ledger.Client
	)
	switch cfg.DispatchMode {
	case config.DispatchLocal:
		if client, err = ledger.Open(cfg); err != nil {
			log.Error("open ledger", "err", err)
			os.Exit(1)
		}
		local = payment.NewLocalDispatcher(log)
		dispatcher = local
	case config.DispatchQueue:
		// the marker expires before the sweeper looks at the row again
		dispatcher = queue.NewStreamDispatcher(rdb, cfg.TransferStream, cfg.SweepAfter/2)
	}

	var sweepOnce sync.Once
	boot := func(bctx context.Context) (*payment.App, error) {
		app, err := payment.Load(bctx, db, dispatcher,
			payment.WithLocker(locker),
			payment.WithTransferCache(cache),
			payment.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		sweeper := queue.NewSweeper(app, cfg.SweepInterval, cfg.SweepAfter, log)
		if local != nil {
			exec := payment.NewExecutor(app, client, cfg.TransferTimeout)
			local.Attach(exec)
			sweeper.WithReconciler(exec, cfg.ReconcileAfter)
		}
		// in queue mode cmd/executor owns the ledger client and reconciles
		sweepOnce.Do(func() { go sweeper.Run(ctx) })
		log.Info("payment service ready", "owner_id", app.State().OwnerID,
			"ft_contract_id", app.State().FungibleContractID, "dispatch", cfg.DispatchMode)
		return app, nil
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if err := router.Setup(r, router.Deps{
		DB:            db,
		Boot:          boot,
		Redis:         rdb,
		Cache:         cache,
		AdminToken:    cfg.AdminToken,
		PayRateLimit:  cfg.PayRateLimit,
		PayRateWindow: cfg.PayRateWindow,
	}); err != nil {
		log.Error("setup router", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
	cancel() // stop the sweeper
	if local != nil {
		local.Wait() // let in-flight transfers reach their continuation
	}
}
