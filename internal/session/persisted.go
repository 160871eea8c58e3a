package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sharpms/dashboard/internal/models"
	"sharpms/dashboard/internal/storage"
)

type readOutcome int

const (
	readMissing readOutcome = iota
	readOK
	readCorrupt
)

type persisted struct {
	user   models.User
	tokens models.TokenPair
}

// readPersisted loads the session values of a device. Backend failures are
// returned as errors; unreadable values are reported as readCorrupt.
func readPersisted(ctx context.Context, store storage.Storage, deviceID string) (persisted, readOutcome, error) {
	values, err := store.Get(ctx, deviceID, storage.SessionKeys...)
	if err != nil {
		if errors.Is(err, storage.ErrCorrupt) {
			return persisted{}, readCorrupt, nil
		}
		return persisted{}, readMissing, err
	}

	rawUser, hasUser := values[storage.KeyUser]
	accessToken := values[storage.KeyAccessToken]
	if !hasUser || rawUser == "" || accessToken == "" {
		return persisted{}, readMissing, nil
	}

	var user models.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil || user.ID == "" {
		return persisted{}, readCorrupt, nil
	}

	return persisted{
		user: user,
		tokens: models.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: values[storage.KeyRefreshToken],
		},
	}, readOK, nil
}

func writePersisted(ctx context.Context, store storage.Storage, deviceID string, user models.User, tokens models.TokenPair) error {
	rawUser, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return store.Set(ctx, deviceID, map[string]string{
		storage.KeyUser:         string(rawUser),
		storage.KeyAccessToken:  tokens.AccessToken,
		storage.KeyRefreshToken: tokens.RefreshToken,
	})
}

// LoadPersisted reads a device session outside of a live Session, for
// processes that only need the stored user and tokens.
func LoadPersisted(ctx context.Context, store storage.Storage, deviceID string) (models.User, models.TokenPair, bool, error) {
	p, outcome, err := readPersisted(ctx, store, deviceID)
	if err != nil {
		return models.User{}, models.TokenPair{}, false, err
	}
	if outcome != readOK {
		return models.User{}, models.TokenPair{}, false, nil
	}
	return p.user, p.tokens, true, nil
}
