package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kayesmahmud/Speaky/pkg/auth"
	"github.com/kayesmahmud/Speaky/pkg/config"
	"github.com/kayesmahmud/Speaky/pkg/logger"
	"github.com/kayesmahmud/Speaky/pkg/model"
	"github.com/kayesmahmud/Speaky/pkg/store"
	"go.uber.org/zap"
)

// seed migrates the Postgres store and creates two users with an accepted
// connection, printing a token for each.
func main() {
	log := logger.New("info", "seed")
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.StoreDriver != config.DriverPostgres {
		log.Fatal("seed needs DATABASE_URL; the memory store does not outlive this process")
	}

	ctx := context.Background()
	db, closeStore, err := store.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	a, err := db.CreateUser(ctx, "ana")
	if err != nil {
		log.Fatal("create user", zap.Error(err))
	}
	b, err := db.CreateUser(ctx, "ben")
	if err != nil {
		log.Fatal("create user", zap.Error(err))
	}
	conn, err := db.CreateConnection(ctx, a.ID, b.ID)
	if err != nil {
		log.Fatal("create connection", zap.Error(err))
	}
	if err := db.UpdateConnectionStatus(ctx, conn.ID, model.StatusAccepted); err != nil {
		log.Fatal("accept connection", zap.Error(err))
	}

	jwt := auth.NewJWT(cfg.JWTSecret)
	for _, u := range []*model.User{a, b} {
		token, err := jwt.GenerateToken(u.ID, 24*time.Hour)
		if err != nil {
			log.Fatal("mint token", zap.Error(err))
		}
		fmt.Printf("user %d (%s): %s\n", u.ID, u.Name, token)
	}
	fmt.Printf("connection %d accepted\n", conn.ID)
}
