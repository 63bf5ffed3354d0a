package store

import (
	"context"
	"os"
	"testing"

	"solstice/internal/store/storetest"
)

func TestPostgresTaskStore(t *testing.T) {
	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		t.Skip("DB_URL not set (integration test)")
	}

	storetest.Run(t, func(t *testing.T, clock *storetest.Clock) storetest.Store {
		ctx := context.Background()
		s, err := Open(ctx, Options{
			Driver:          DriverPostgres,
			DSN:             dbURL,
			MaxOpenConns:    4,
			ConnectAttempts: 3,
			Now:             clock.Now,
		})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = s.Close() })

		if err := s.Migrate(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := s.DB().ExecContext(ctx, `DELETE FROM tasks`); err != nil {
			t.Fatal(err)
		}
		return s
	})
}
