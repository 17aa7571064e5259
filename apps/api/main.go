package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kayesmahmud/Speaky/pkg/auth"
	"github.com/kayesmahmud/Speaky/pkg/config"
	"github.com/kayesmahmud/Speaky/pkg/correction"
	"github.com/kayesmahmud/Speaky/pkg/logger"
	"github.com/kayesmahmud/Speaky/pkg/messages"
	"github.com/kayesmahmud/Speaky/pkg/presence"
	"github.com/kayesmahmud/Speaky/pkg/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "api").Fatal("invalid configuration", zap.Error(err))
	}
	log := logger.New(cfg.LogLevel, "api")
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, closeStore, err := store.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	var lookup presenceSource = storePresence{users: db}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		lookup = presence.NewRedisMirror(rdb, "")
	}

	s := &server{
		messages:    messages.NewService(db, cfg.MaxContentLength),
		corrections: correction.NewService(db),
		presence:    lookup,
		verifier:    auth.NewJWT(cfg.JWTSecret),
		log:         log,
	}

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("api listening", zap.String("addr", cfg.APIAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("api server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
}
