package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const deviceStorageSchema = `
	CREATE TABLE IF NOT EXISTS device_storage (
		device_id  TEXT        NOT NULL,
		key        TEXT        NOT NULL,
		value      TEXT        NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ,
		PRIMARY KEY (device_id, key)
	)
`

// DeviceStorageRepository is the Postgres backend for per-device session
// storage.
type DeviceStorageRepository struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func NewDeviceStorageRepository(pool *pgxpool.Pool, ttl time.Duration) *DeviceStorageRepository {
	return &DeviceStorageRepository{pool: pool, ttl: ttl}
}

func (r *DeviceStorageRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, deviceStorageSchema); err != nil {
		return fmt.Errorf("create device_storage: %w", err)
	}
	return nil
}

func (r *DeviceStorageRepository) Get(ctx context.Context, deviceID string, keys ...string) (map[string]string, error) {
	const query = `
		SELECT key, value
		FROM device_storage
		WHERE device_id = $1
		  AND key = ANY($2)
		  AND (expires_at IS NULL OR expires_at > NOW())
	`

	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, query, deviceID, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, rows.Err()
}

func (r *DeviceStorageRepository) Set(ctx context.Context, deviceID string, values map[string]string) error {
	const query = `
		INSERT INTO device_storage (device_id, key, value, updated_at, expires_at)
		VALUES ($1, $2, $3, NOW(), $4)
		ON CONFLICT (device_id, key)
		DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW(),
			expires_at = EXCLUDED.expires_at
	`

	var expiresAt *time.Time
	if r.ttl > 0 {
		t := time.Now().Add(r.ttl)
		expiresAt = &t
	}

	batch := &pgx.Batch{}
	for key, value := range values {
		batch.Queue(query, deviceID, key, value, expiresAt)
	}
	if batch.Len() == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *DeviceStorageRepository) Delete(ctx context.Context, deviceID string, keys ...string) error {
	const query = `DELETE FROM device_storage WHERE device_id = $1 AND key = ANY($2)`
	if len(keys) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, query, deviceID, keys)
	return err
}

// DeleteExpired removes rows past their expiry and reports how many went.
func (r *DeviceStorageRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM device_storage WHERE expires_at IS NOT NULL AND expires_at <= NOW()`
	cmd, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
