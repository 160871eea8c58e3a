package fetch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// loadTimeout bounds a shared load, which no longer follows the
// cancellation of the caller that started it.
const loadTimeout = 30 * time.Second

type LoadFunc func(ctx context.Context) (json.RawMessage, error)

type Result struct {
	Data      json.RawMessage
	FetchedAt time.Time
	Cached    bool
}

// Fetcher serves keyed payloads from the cache while they are younger than
// the revalidation window and loads them otherwise. Concurrent loads of
// one key share a single call.
type Fetcher struct {
	cache     Cache
	window    time.Duration
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
	group     singleflight.Group
}

func NewFetcher(cache Cache, window time.Duration, retention time.Duration, log zerolog.Logger) *Fetcher {
	return NewFetcherWithNow(cache, window, retention, log, time.Now)
}

func NewFetcherWithNow(cache Cache, window time.Duration, retention time.Duration, log zerolog.Logger, now func() time.Time) *Fetcher {
	if retention < window {
		retention = window
	}
	return &Fetcher{
		cache:     cache,
		window:    window,
		retention: retention,
		now:       now,
		log:       log,
	}
}

func (f *Fetcher) Get(ctx context.Context, key string, load LoadFunc) (Result, error) {
	entry, ok, err := f.cache.Get(ctx, key)
	if err != nil {
		f.log.Warn().Err(err).Str("key", key).Msg("cache read failed, loading")
	}
	if ok && f.now().Sub(entry.FetchedAt) < f.window {
		return Result{Data: entry.Data, FetchedAt: entry.FetchedAt, Cached: true}, nil
	}
	return f.Revalidate(ctx, key, load)
}

// Revalidate always loads, bypassing any fresh cached entry. A caller
// that gives up gets its own context error while the shared load keeps
// running for the other waiters.
func (f *Fetcher) Revalidate(ctx context.Context, key string, load LoadFunc) (Result, error) {
	ch := f.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		data, err := load(loadCtx)
		if err != nil {
			return Result{}, err
		}

		res := Result{Data: data, FetchedAt: f.now()}
		if err := f.cache.Set(loadCtx, key, Entry{Data: data, FetchedAt: res.FetchedAt}, f.retention); err != nil {
			f.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		return r.Val.(Result), nil
	}
}

func (f *Fetcher) Invalidate(ctx context.Context, key string) error {
	f.group.Forget(key)
	return f.cache.Delete(ctx, key)
}
