package main

import (
	"github.com/kayesmahmud/Speaky/pkg/config"
	"github.com/kayesmahmud/Speaky/pkg/db"
	"github.com/kayesmahmud/Speaky/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	log := logger.New("info", "drop_table")
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	session, err := db.NewSession(cfg.ScyllaHosts, cfg.ScyllaKeyspace, log)
	if err != nil {
		log.Fatal("failed to connect", zap.Error(err))
	}
	defer session.Close()

	log.Info("dropping table message_archive")
	if err := session.DropArchive(); err != nil {
		log.Fatal("failed to drop table", zap.Error(err))
	}
	log.Info("table dropped")
}
