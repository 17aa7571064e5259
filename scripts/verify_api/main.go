package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/kayesmahmud/Speaky/pkg/auth"
	"github.com/kayesmahmud/Speaky/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	apiAddr := flag.String("api", "http://localhost:8081", "api service address")
	userID := flag.Int64("user", 1, "user id to call as")
	connectionID := flag.Int64("conn", 1, "connection id to read")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "JWT secret")
	flag.Parse()

	log := logger.New("info", "verify_api")
	defer log.Sync()

	if *secret == "" {
		log.Fatal("-secret or JWT_SECRET is required")
	}
	token, err := auth.NewJWT(*secret).GenerateToken(*userID, time.Hour)
	if err != nil {
		log.Fatal("mint token", zap.Error(err))
	}

	paths := []string{
		"/healthz",
		"/api/messages/unread",
		fmt.Sprintf("/api/connections/%d/messages", *connectionID),
		fmt.Sprintf("/api/connections/%d/messages/unread", *connectionID),
		"/api/corrections/my",
		fmt.Sprintf("/api/users/%d/presence", *userID),
	}
	for _, p := range paths {
		req, _ := http.NewRequest(http.MethodGet, *apiAddr+p, nil)
		req.Header.Add("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			log.Fatal("request failed", zap.String("path", p), zap.Error(err))
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		log.Info("response", zap.String("path", p), zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
	}
}
