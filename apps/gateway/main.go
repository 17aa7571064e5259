package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/kayesmahmud/Speaky/pkg/auth"
	"github.com/kayesmahmud/Speaky/pkg/chat"
	"github.com/kayesmahmud/Speaky/pkg/config"
	"github.com/kayesmahmud/Speaky/pkg/logger"
	"github.com/kayesmahmud/Speaky/pkg/presence"
	"github.com/kayesmahmud/Speaky/pkg/snowflake"
	"github.com/kayesmahmud/Speaky/pkg/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "gateway").Fatal("invalid configuration", zap.Error(err))
	}
	log := logger.New(cfg.LogLevel, "gateway")
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, closeStore, err := store.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	mirrors := presence.Mirrors{presence.StoreMirror{Users: db}}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, presence mirror will retry per call", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		mirrors = append(mirrors, presence.NewRedisMirror(rdb, "node-"+strconv.FormatInt(cfg.NodeID, 10)))
	}
	tracker := presence.NewTracker(mirrors, log)

	var broker chat.Broker
	if len(cfg.KafkaBrokers) > 0 {
		broker = chat.NewKafkaBroker(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.NodeID, log)
		log.Info("room events via kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	ids, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		log.Fatal("failed to create id node", zap.Error(err))
	}

	metrics := chat.NewMetrics()
	hub := chat.NewHub(tracker, broker, metrics, log)
	relay := chat.NewRelay(hub, db, cfg.MaxContentLength)

	hubCtx, cancelHub := context.WithCancel(context.Background())
	hubDone := make(chan error, 1)
	go func() { hubDone <- hub.Run(hubCtx) }()

	gw := chat.NewGateway(hubCtx, hub, relay, auth.NewJWT(cfg.JWTSecret), ids, chat.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		MaxMessageSize: cfg.MaxMessageSize,
		RateLimit:      rate.Limit(cfg.RateLimit.RPS),
		RateBurst:      cfg.RateLimit.Burst,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws/chat", gw)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.GatewayAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("gateway listening", zap.String("addr", cfg.GatewayAddr), zap.Int64("node_id", cfg.NodeID))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("gateway server failed", zap.Error(err))
		}
	}()

	var hubErr error
	hubStopped := false
	select {
	case <-ctx.Done():
	case hubErr = <-hubDone:
		hubStopped = true
		log.Error("hub stopped, shutting down gateway", zap.Error(hubErr))
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	cancelHub()
	if !hubStopped {
		select {
		case hubErr = <-hubDone:
		case <-shutdownCtx.Done():
		}
	}
	if hubErr != nil {
		log.Sync()
		os.Exit(1)
	}
}
