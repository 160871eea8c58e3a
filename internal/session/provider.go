package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sharpms/dashboard/internal/storage"
)

// Provider hands out one Session per device, creating it on first use.
type Provider struct {
	store storage.Storage
	auth  Authenticator
	log   zerolog.Logger
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewProvider(store storage.Storage, auth Authenticator, log zerolog.Logger) *Provider {
	return NewProviderWithNow(store, auth, log, time.Now)
}

func NewProviderWithNow(store storage.Storage, auth Authenticator, log zerolog.Logger, now func() time.Time) *Provider {
	return &Provider{
		store:    store,
		auth:     auth,
		log:      log,
		now:      now,
		sessions: make(map[string]*Session),
	}
}

func (p *Provider) Session(deviceID string) *Session {
	now := p.now()

	p.mu.Lock()
	s, ok := p.sessions[deviceID]
	if !ok {
		s = New(deviceID, p.store, p.auth, p.log)
		p.sessions[deviceID] = s
	}
	p.mu.Unlock()

	s.touch(now)
	return s
}

// Sweep drops sessions idle for longer than idle. Persisted storage is
// untouched, so an evicted device is reloaded on its next request.
func (p *Provider) Sweep(idle time.Duration) int {
	cutoff := p.now().Add(-idle)

	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for id, s := range p.sessions {
		if s.idleSince().Before(cutoff) {
			delete(p.sessions, id)
			removed++
		}
	}
	return removed
}

type Stats struct {
	Total         int            `json:"total"`
	ByState       map[string]int `json:"byState"`
	Authenticated int            `json:"authenticated"`
}

func (p *Provider) Stats() Stats {
	p.mu.Lock()
	sessions := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.mu.Unlock()

	stats := Stats{Total: len(sessions), ByState: make(map[string]int)}
	for _, s := range sessions {
		state := s.Snapshot().State
		stats.ByState[state.String()]++
		if state == StateAuthenticated {
			stats.Authenticated++
		}
	}
	return stats
}
