package storage

import (
	"context"
	"errors"
)

// Keys making up the persisted session of one device.
const (
	KeyUser         = "user"
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
)

var SessionKeys = []string{KeyUser, KeyAccessToken, KeyRefreshToken}

var ErrCorrupt = errors.New("persisted value is corrupt")

// Storage is the per-device key-value store backing a session. Get omits
// keys that are not present.
type Storage interface {
	Get(ctx context.Context, deviceID string, keys ...string) (map[string]string, error)
	Set(ctx context.Context, deviceID string, values map[string]string) error
	Delete(ctx context.Context, deviceID string, keys ...string) error
}
