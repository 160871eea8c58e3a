package storage

import (
	"context"
	"errors"
	"testing"

	"sharpms/dashboard/internal/security"
)

func TestMemoryStorage_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()

	if err := m.Set(ctx, "dev", map[string]string{KeyUser: "{}", KeyAccessToken: "at"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := m.Get(ctx, "dev", SessionKeys...)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 2 || got[KeyAccessToken] != "at" {
		t.Fatalf("unexpected values: %v", got)
	}
	if _, ok := got[KeyRefreshToken]; ok {
		t.Fatalf("expected refresh token to be absent")
	}

	if err := m.Delete(ctx, "dev", SessionKeys...); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("expected no devices left, got %d", m.Len())
	}
}

func TestSealed_EncryptsAtRest(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStorage()
	sealer, err := security.NewSealer("secret", "storage")
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	s := NewSealed(inner, sealer)

	if err := s.Set(ctx, "dev", map[string]string{KeyAccessToken: "at"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	raw, _ := inner.Get(ctx, "dev", KeyAccessToken)
	if raw[KeyAccessToken] == "at" {
		t.Fatalf("expected value to be sealed at rest")
	}

	got, err := s.Get(ctx, "dev", KeyAccessToken)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got[KeyAccessToken] != "at" {
		t.Fatalf("expected at, got %q", got[KeyAccessToken])
	}
}

func TestSealed_ReportsCorruptValues(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStorage()
	sealer, _ := security.NewSealer("secret", "storage")
	s := NewSealed(inner, sealer)

	if err := s.Set(ctx, "dev", map[string]string{KeyAccessToken: "at"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	_ = inner.Set(ctx, "dev", map[string]string{KeyUser: "plain-json"})

	got, err := s.Get(ctx, "dev", KeyUser, KeyAccessToken)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if got[KeyAccessToken] != "at" {
		t.Fatalf("expected readable values to survive, got %v", got)
	}
	if _, ok := got[KeyUser]; ok {
		t.Fatalf("expected corrupt value to be dropped")
	}
}
