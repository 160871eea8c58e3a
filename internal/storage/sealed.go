package storage

import (
	"context"
	"errors"
	"fmt"

	"sharpms/dashboard/internal/security"
)

// Sealed encrypts every value before it reaches the wrapped Storage.
// A value that fails to open is reported as ErrCorrupt.
type Sealed struct {
	inner  Storage
	sealer *security.Sealer
}

func NewSealed(inner Storage, sealer *security.Sealer) *Sealed {
	return &Sealed{inner: inner, sealer: sealer}
}

func (s *Sealed) Get(ctx context.Context, deviceID string, keys ...string) (map[string]string, error) {
	raw, err := s.inner.Get(ctx, deviceID, keys...)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(raw))
	var corrupt []error
	for key, sealed := range raw {
		plain, err := s.sealer.Open(sealed)
		if err != nil {
			corrupt = append(corrupt, fmt.Errorf("%w: %s", ErrCorrupt, key))
			continue
		}
		out[key] = plain
	}
	return out, errors.Join(corrupt...)
}

func (s *Sealed) Set(ctx context.Context, deviceID string, values map[string]string) error {
	sealed := make(map[string]string, len(values))
	for key, plain := range values {
		v, err := s.sealer.Seal(plain)
		if err != nil {
			return fmt.Errorf("seal %s: %w", key, err)
		}
		sealed[key] = v
	}
	return s.inner.Set(ctx, deviceID, sealed)
}

func (s *Sealed) Delete(ctx context.Context, deviceID string, keys ...string) error {
	return s.inner.Delete(ctx, deviceID, keys...)
}
