// Package testutil provides shared helpers for integration tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/linkgate/linkgate/internal/store/migrations"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// PostgresURL returns a migrated database for integration tests. It uses
// TEST_DATABASE_URL when set, otherwise starts a container. The test is
// skipped in -short mode or when no database can be provided.
func PostgresURL(t testing.TB) string {
	t.Helper()

	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		migrate(t, dsn)
		return dsn
	}
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("linkgate_test"),
		tcpostgres.WithUsername("linkgate"),
		tcpostgres.WithPassword("linkgate"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	testcontainers.CleanupContainer(t, container)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}

	migrate(t, dsn)
	return dsn
}

// PostgresPool opens a pool on a migrated database and truncates its tables.
func PostgresPool(t testing.TB) *pgxpool.Pool {
	t.Helper()

	dsn := PostgresURL(t)
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(context.Background(), "TRUNCATE links, click_events CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return pool
}

// RedisClient returns a client on a flushed Redis database. It uses
// TEST_REDIS_URL when set, otherwise starts a container.
func RedisClient(t testing.TB) *redis.Client {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		if testing.Short() {
			t.Skip("skipping redis integration test in short mode")
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		container, err := tcredis.Run(ctx, "redis:7-alpine")
		if err != nil {
			t.Skipf("redis container unavailable: %v", err)
		}
		testcontainers.CleanupContainer(t, container)

		url, err = container.ConnectionString(ctx)
		if err != nil {
			t.Fatalf("redis connection string: %v", err)
		}
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return client
}

func migrate(t testing.TB, dsn string) {
	t.Helper()
	if err := migrations.Run(dsn, DiscardLogger()); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
}
