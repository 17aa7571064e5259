package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/kayesmahmud/Speaky/pkg/archive"
	"github.com/kayesmahmud/Speaky/pkg/config"
	"github.com/kayesmahmud/Speaky/pkg/db"
	"github.com/kayesmahmud/Speaky/pkg/logger"
	"github.com/kayesmahmud/Speaky/pkg/model"
	"go.uber.org/zap"
)

// archive_tail prints the newest archived messages of one connection.
func main() {
	connectionID := flag.Int64("conn", 1, "connection id")
	limit := flag.Int("n", 20, "how many messages")
	flag.Parse()

	log := logger.New("info", "archive_tail")
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

	records, err := archive.NewScyllaWriter(session.Session).Recent(context.Background(), *connectionID, *limit)
	if err != nil {
		log.Fatal("read archive", zap.Error(err))
	}
	for _, r := range records {
		fmt.Printf("%s [%d] user %d (%s): %s\n", model.FormatTime(r.CreatedAt), r.ID, r.SenderID, r.Type, r.Content)
	}
}
