package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kayesmahmud/Speaky/pkg/archive"
	"github.com/kayesmahmud/Speaky/pkg/config"
	"github.com/kayesmahmud/Speaky/pkg/db"
	"github.com/kayesmahmud/Speaky/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "archiver").Fatal("invalid configuration", zap.Error(err))
	}
	log := logger.New(cfg.LogLevel, "archiver")
	defer log.Sync()

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required for the archiver")
	}

	if err := db.EnsureKeyspace(cfg.ScyllaHosts, cfg.ScyllaKeyspace, log); err != nil {
		log.Fatal("failed to create keyspace", zap.Error(err))
	}
	session, err := db.NewSession(cfg.ScyllaHosts, cfg.ScyllaKeyspace, log)
	if err != nil {
		log.Fatal("failed to connect to scylla", zap.Error(err))
	}
	defer session.Close()
	if err := session.EnsureArchiveSchema(); err != nil {
		log.Fatal("failed to create archive table", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := archive.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer reader.Close()

	log.Info("archiving room events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	if err := archive.New(reader, archive.NewScyllaWriter(session.Session), log).Run(ctx); err != nil {
		log.Error("archiver failed", zap.Error(err))
	}
	log.Info("archiver stopped")
}
