package auth

import (
	"context"
	"encoding/json"
	"time"

	khttp "github.com/kochabx/studycore/core/net/http"
	"github.com/kochabx/studycore/core/retry"
	"github.com/kochabx/studycore/errors"
	"github.com/kochabx/studycore/log"
)

// Envelope is the response shape of the remote API.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client sends authenticated requests to the remote API.
//
// Network errors, timeouts, 408, 429 and 5xx are retried with exponential
// backoff. A 401 is never retried: the session is discarded and
// ErrLoginRequired returned.
type Client struct {
	tokens  *Manager
	http    *khttp.Client
	timeout time.Duration
	policy  retry.Policy
	logger  *log.Logger
}

func NewClient(tokens *Manager, opts ...ClientOption) *Client {
	cfg := tokens.cfg
	c := &Client{
		tokens:  tokens,
		http:    tokens.http,
		timeout: cfg.RequestTimeout,
		logger:  tokens.logger,
		policy: retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Strategy:    retry.NewExponentialBackoff(cfg.Retry.BaseDelay, cfg.Retry.MaxDelay, 2, false),
			Retryable:   errors.IsRetryable,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying request")
	}
	return c
}

type ClientOption func(*Client)

// WithRetry replaces the backoff strategy and attempt count.
func WithRetry(attempts int, s retry.Strategy) ClientOption {
	return func(c *Client) {
		c.policy.MaxAttempts = attempts
		c.policy.Strategy = s
	}
}

func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Do sends body to path and decodes the envelope's data into out. body is
// encoded again on every attempt, so it must not be a one-shot reader.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	var env Envelope
	err = retry.Do(ctx, c.policy, func(ctx context.Context) error {
		rctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.http.Request(rctx, method, path, body, khttp.WithBearer(token))
		if err != nil {
			return err
		}
		if resp.StatusCode == 401 {
			return errors.Unauthorized("%s %s unauthorized", method, path)
		}

		env = Envelope{}
		if len(resp.Body) > 0 {
			if derr := json.Unmarshal(resp.Body, &env); derr != nil && resp.OK() {
				return errors.Wrap(derr, 502, "decode %s response", path)
			}
		}
		if !resp.OK() {
			msg := env.Error
			if msg == "" {
				msg = string(resp.Body)
			}
			return errors.New(resp.StatusCode, "%s %s: %s", method, path, msg).
				WithMetadata(map[string]string{"path": path})
		}
		if !env.Success {
			return errors.New(422, "%s %s: %s", method, path, env.Error)
		}
		return nil
	})
	if err != nil {
		if errors.Code(err) == 401 {
			_ = c.tokens.Discard(ctx, "unauthorized response")
			return ErrLoginRequired.WithCause(err)
		}
		return err
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errors.Wrap(err, 502, "decode %s data", path)
		}
	}
	return nil
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, "POST", path, body, out)
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, "GET", path, nil, out)
}
