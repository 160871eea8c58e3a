package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sharpms/dashboard/internal/apiclient"
	"sharpms/dashboard/internal/models"
	"sharpms/dashboard/internal/storage"
)

var ErrNotAuthenticated = errors.New("session is not authenticated")

// Authenticator performs the remote login call.
type Authenticator interface {
	Login(ctx context.Context, email string, password string) (apiclient.LoginResult, error)
}

// Session is the authentication state of one device.
type Session struct {
	deviceID string
	store    storage.Storage
	auth     Authenticator
	log      zerolog.Logger

	// wmu serializes every storage mutation with the state change that
	// goes with it, so a logout can never be followed by a stale write.
	wmu sync.Mutex

	mu       sync.RWMutex
	state    State
	user     *models.User
	tokens   models.TokenPair
	lastSeen time.Time
}

func New(deviceID string, store storage.Storage, auth Authenticator, log zerolog.Logger) *Session {
	return &Session{
		deviceID: deviceID,
		store:    store,
		auth:     auth,
		log:      log.With().Str("device_id", deviceID).Logger(),
		state:    StateUninitialized,
		lastSeen: time.Now(),
	}
}

func (s *Session) DeviceID() string {
	return s.deviceID
}

// Init loads the persisted session once. Callers arriving while another
// goroutine is loading return immediately and observe StateLoading. On a
// storage backend error the session goes back to StateUninitialized so
// the next request retries.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUninitialized {
		s.mu.Unlock()
		return nil
	}
	s.state = StateLoading
	s.mu.Unlock()

	s.wmu.Lock()
	defer s.wmu.Unlock()

	// A login or logout that got the write lock first wins.
	if s.Snapshot().State != StateLoading {
		return nil
	}

	p, outcome, err := readPersisted(ctx, s.store, s.deviceID)
	if err != nil {
		s.mu.Lock()
		if s.state == StateLoading {
			s.state = StateUninitialized
		}
		s.mu.Unlock()
		return fmt.Errorf("read persisted session: %w", err)
	}

	if outcome == readCorrupt {
		s.log.Warn().Msg("persisted session is corrupt, clearing")
		if err := s.store.Delete(ctx, s.deviceID, storage.SessionKeys...); err != nil {
			s.log.Error().Err(err).Msg("clear corrupt session failed")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if outcome == readOK {
		user := p.user
		s.user = &user
		s.tokens = p.tokens
		s.state = StateAuthenticated
		return nil
	}
	s.user = nil
	s.tokens = models.TokenPair{}
	s.state = StateAnonymous
	return nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{State: s.state}
	if s.user != nil {
		user := *s.user
		user.Roles = append([]models.Role(nil), s.user.Roles...)
		snap.User = &user
	}
	return snap
}

// AccessToken returns the bearer token of an authenticated session.
func (s *Session) AccessToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateAuthenticated {
		return "", false
	}
	return s.tokens.AccessToken, true
}

// Login authenticates against the remote API. State and storage change
// only when the call succeeds with a complete response and the values are
// persisted.
func (s *Session) Login(ctx context.Context, email string, password string) error {
	result, err := s.auth.Login(ctx, email, password)
	if err != nil {
		s.log.Info().Err(err).Msg("login failed")
		return err
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	if err := writePersisted(ctx, s.store, s.deviceID, result.User, result.Tokens); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	s.mu.Lock()
	user := result.User
	s.user = &user
	s.tokens = result.Tokens
	s.state = StateAuthenticated
	s.mu.Unlock()

	s.log.Info().Str("user_id", user.ID).Msg("login succeeded")
	return nil
}

// Logout resets the in-memory state and clears every persisted key. The
// in-memory reset happens even if the storage delete fails.
func (s *Session) Logout(ctx context.Context) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	s.user = nil
	s.tokens = models.TokenPair{}
	s.state = StateAnonymous
	s.mu.Unlock()

	if err := s.store.Delete(ctx, s.deviceID, storage.SessionKeys...); err != nil {
		return fmt.Errorf("clear persisted session: %w", err)
	}
	return nil
}

// UpdateUser replaces the persisted user record of an authenticated
// session, keeping its tokens.
func (s *Session) UpdateUser(ctx context.Context, user models.User) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.RLock()
	if s.state != StateAuthenticated {
		s.mu.RUnlock()
		return ErrNotAuthenticated
	}
	tokens := s.tokens
	s.mu.RUnlock()

	if err := writePersisted(ctx, s.store, s.deviceID, user, tokens); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated {
		return ErrNotAuthenticated
	}
	s.user = &user
	return nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}
