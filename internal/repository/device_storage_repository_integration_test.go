//go:build integration

package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/ksuid"
)

// Run with: SHARP_TEST_POSTGRES_DSN=postgres://... go test -tags integration ./internal/repository/
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("SHARP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SHARP_TEST_POSTGRES_DSN not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := NewDeviceStorageRepository(pool, 0).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return pool
}

func testDevice(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	device := "test-" + ksuid.New().String()
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM device_storage WHERE device_id = $1`, device)
	})
	return device
}

func TestDeviceStorageRepository_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	repo := NewDeviceStorageRepository(pool, time.Hour)
	device := testDevice(t, pool)

	if err := repo.Set(ctx, device, map[string]string{"user": `{"id":"u1"}`, "accessToken": "at"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := repo.Set(ctx, device, map[string]string{"accessToken": "at2"}); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	got, err := repo.Get(ctx, device, "user", "accessToken", "refreshToken")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 2 || got["accessToken"] != "at2" || got["user"] != `{"id":"u1"}` {
		t.Fatalf("unexpected values: %v", got)
	}

	if err := repo.Delete(ctx, device, "user", "accessToken", "refreshToken"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err = repo.Get(ctx, device, "user", "accessToken")
	if err != nil || len(got) != 0 {
		t.Fatalf("expected no values, got %v err=%v", got, err)
	}
}

func TestDeviceStorageRepository_ExpiredRowsAreHiddenAndSwept(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	repo := NewDeviceStorageRepository(pool, time.Millisecond)
	device := testDevice(t, pool)

	if err := repo.Set(ctx, device, map[string]string{"accessToken": "at"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	got, err := repo.Get(ctx, device, "accessToken")
	if err != nil || len(got) != 0 {
		t.Fatalf("expected the expired row to be hidden, got %v err=%v", got, err)
	}

	n, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n < 1 {
		t.Fatalf("expected at least one expired row removed, got %d", n)
	}
}
