package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"sharpms/dashboard/internal/config"
)

const maxBodyBytes = 8 << 20

// Client talks to the remote Sharp REST API. Every request carries the
// caller's bearer token when one is given.
type Client struct {
	baseURL        *url.URL
	httpClient     *http.Client
	retries        uint
	backoffInitial time.Duration
	log            zerolog.Logger
}

func New(cfg config.APIConfig, log zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api base url %q must be absolute", cfg.BaseURL)
	}

	retries := 0
	if cfg.RetryCount > 0 {
		retries = cfg.RetryCount
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retries:        uint(retries),
		backoffInitial: 250 * time.Millisecond,
		log:            log,
	}, nil
}

// Get fetches path and returns the unwrapped payload. Network failures and
// 5xx/429 responses are retried up to the configured retry count.
func (c *Client) Get(ctx context.Context, token string, path string) (json.RawMessage, error) {
	attempt := 0
	operation := func() (response, error) {
		attempt++
		resp, err := c.do(ctx, http.MethodGet, path, token, nil)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.temporary() {
				return response{}, backoff.Permanent(err)
			}
			c.log.Debug().Err(err).Str("path", path).Int("attempt", attempt).Msg("api get failed")
			return response{}, err
		}
		return resp, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.backoffInitial

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.retries+1),
	)
	if err != nil {
		return nil, err
	}
	return Unwrap(resp.status, resp.body)
}

// Post sends body as JSON. Posts are never retried.
func (c *Client) Post(ctx context.Context, token string, path string, body any) (json.RawMessage, error) {
	resp, err := c.do(ctx, http.MethodPost, path, token, body)
	if err != nil {
		return nil, err
	}
	return Unwrap(resp.status, resp.body)
}

type response struct {
	status int
	body   []byte
}

func (c *Client) do(ctx context.Context, method string, path string, token string, body any) (response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return response{}, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reader)
	if err != nil {
		return response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return response{}, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		return response{}, &APIError{StatusCode: res.StatusCode, Message: errorMessage(data)}
	}
	return response{status: res.StatusCode, body: data}, nil
}

func (c *Client) resolve(path string) string {
	u := *c.baseURL
	rel, err := url.Parse(path)
	if err != nil {
		u.Path = u.Path + "/" + strings.TrimLeft(path, "/")
		return u.String()
	}
	u.Path = u.Path + "/" + strings.TrimLeft(rel.Path, "/")
	u.RawQuery = rel.RawQuery
	return u.String()
}
