package main

import (
	"github.com/kayesmahmud/Speaky/pkg/config"
	"github.com/kayesmahmud/Speaky/pkg/db"
	"github.com/kayesmahmud/Speaky/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	log := logger.New("info", "create_archive_table")
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	if err := db.EnsureKeyspace(cfg.ScyllaHosts, cfg.ScyllaKeyspace, log); err != nil {
		log.Fatal("failed to create keyspace", zap.Error(err))
	}
	session, err := db.NewSession(cfg.ScyllaHosts, cfg.ScyllaKeyspace, log)
	if err != nil {
		log.Fatal("failed to connect", zap.Error(err))
	}
	defer session.Close()

	if err := session.EnsureArchiveSchema(); err != nil {
		log.Fatal("failed to create table", zap.Error(err))
	}
	log.Info("table message_archive created", zap.String("keyspace", cfg.ScyllaKeyspace))
}
