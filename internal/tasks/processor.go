package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"sharpms/dashboard/internal/apiclient"
	"sharpms/dashboard/internal/fetch"
	"sharpms/dashboard/internal/hub"
	"sharpms/dashboard/internal/queue"
	"sharpms/dashboard/internal/session"
	"sharpms/dashboard/internal/storage"
	"sharpms/dashboard/internal/views"
)

type API interface {
	Get(ctx context.Context, token string, path string) (json.RawMessage, error)
}

type Revalidator interface {
	Revalidate(ctx context.Context, key string, load fetch.LoadFunc) (fetch.Result, error)
}

type Notifier interface {
	Publish(ctx context.Context, u hub.Update) error
}

// Processor refreshes polled views on behalf of devices that are watching
// them.
type Processor struct {
	store    storage.Storage
	views    *views.Registry
	api      API
	fetcher  Revalidator
	notifier Notifier
	logger   zerolog.Logger
}

func NewProcessor(store storage.Storage, registry *views.Registry, api API, fetcher Revalidator, notifier Notifier, logger zerolog.Logger) *Processor {
	return &Processor{
		store:    store,
		views:    registry,
		api:      api,
		fetcher:  fetcher,
		notifier: notifier,
		logger:   logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	task, err := queue.DecodeTask(msg.Values)
	if err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping undecodable task")
		return nil
	}
	return p.Process(ctx, task)
}

func (p *Processor) Process(ctx context.Context, task queue.Task) error {
	switch task.Type {
	case queue.TaskRefresh:
		return p.refresh(ctx, task)
	default:
		p.logger.Warn().Str("type", task.Type).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) refresh(ctx context.Context, task queue.Task) error {
	view, ok := p.views.Lookup(task.View)
	if !ok {
		p.logger.Warn().Str("view", task.View).Msg("refresh for unknown view")
		return nil
	}

	user, tokens, ok, err := session.LoadPersisted(ctx, p.store, task.DeviceID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !ok {
		// Logged out since the watch was registered.
		return nil
	}

	res, err := p.fetcher.Revalidate(ctx, views.CacheKey(user.ID, view.Name), func(ctx context.Context) (json.RawMessage, error) {
		return p.api.Get(ctx, tokens.AccessToken, view.Endpoint)
	})
	if err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			p.logger.Info().Str("device_id", task.DeviceID).Str("view", view.Name).Msg("refresh unauthorized, skipping")
			return nil
		}
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			p.logger.Info().Err(err).Str("view", view.Name).Msg("refresh rejected by api")
			return nil
		}
		return fmt.Errorf("refresh %s: %w", view.Name, err)
	}

	if err := p.notifier.Publish(ctx, hub.Update{
		DeviceID:  task.DeviceID,
		View:      view.Name,
		FetchedAt: res.FetchedAt,
	}); err != nil {
		p.logger.Warn().Err(err).Str("view", view.Name).Msg("publish update failed")
	}

	p.logger.Debug().Str("device_id", task.DeviceID).Str("view", view.Name).Msg("view refreshed")
	return nil
}
