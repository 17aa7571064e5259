package store

import (
	"context"
	"os"
	"testing"
)

func TestPostgres(t *testing.T) {
	url := os.Getenv("SPEAKY_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SPEAKY_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewPostgres(ctx, url)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer s.Close()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	runBackendChecks(t, s)
}
