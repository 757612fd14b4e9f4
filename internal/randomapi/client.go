// internal/randomapi/client.go
//
// HTTP client for the public random-number service that supplies round targets.
// Responsibilities:
//   - GET <base>?min=<min>&max=<max>&count=1 and decode a JSON array of ints.
//   - Classify failures: transport/status, decode, empty result, out of range.
//   - Retry transient failures (transport errors, 5xx) with exponential backoff.
//
// Client satisfies game.TargetSource.

package randomapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/bullseye/internal/game"
)

// DefaultURL is the public endpoint queried when no base URL is configured.
const DefaultURL = "http://www.randomnumberapi.com/api/v1.0/random"

const (
	defaultTimeout  = 5 * time.Second
	defaultAttempts = 3
	defaultBackoff  = 200 * time.Millisecond
	maxBody         = 4 << 10
)

// Client fetches single random integers.
type Client struct {
	baseURL  string
	min, max int
	http     *http.Client
	attempts uint
	backoff  time.Duration
}

// Option configures a Client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient replaces the underlying http.Client (and its timeout).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithAttempts bounds the number of requests per Fetch; 1 disables retries.
func WithAttempts(n uint) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithBackoff sets the first retry delay; later delays grow exponentially.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithRange sets the inclusive bounds requested from the service.
func WithRange(lo, hi int) Option {
	return func(c *Client) { c.min, c.max = lo, hi }
}

// New builds a Client for DefaultURL and the game's target range.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultURL,
		min:      game.MinTarget,
		max:      game.MaxTarget,
		http:     &http.Client{Timeout: defaultTimeout},
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch returns one random integer in [min,max].
func (c *Client) Fetch(ctx context.Context) (int, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return 0, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoff

	attempt := 0
	n, err := backoff.Retry(ctx, func() (int, error) {
		attempt++
		n, err := c.fetchOnce(ctx, endpoint)
		if err != nil && !isPermanent(err) {
			log.Debug().Err(err).Int("attempt", attempt).Str("url", endpoint).Msg("random fetch attempt failed")
		}
		return n, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.attempts))
	if err != nil {
		if !isClassified(err) {
			// context ended between attempts
			err = fmt.Errorf("%w: %w", ErrTransport, err)
		}
		log.Warn().Err(err).Int("attempts", attempt).Str("url", endpoint).Msg("random fetch failed")
		return 0, err
	}
	return n, nil
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: parse base url: %w", ErrTransport, err)
	}
	q := u.Query()
	q.Set("min", strconv.Itoa(c.min))
	q.Set("max", strconv.Itoa(c.max))
	q.Set("count", "1")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("%w: build request: %w", ErrTransport, err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, backoff.Permanent(fmt.Errorf("%w: %w", ErrTransport, err))
		}
		return 0, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return 0, fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return 0, backoff.Permanent(fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode))
	}

	var vals *[]int
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBody))
	if err := dec.Decode(&vals); err != nil {
		return 0, backoff.Permanent(fmt.Errorf("%w: %w", ErrDecode, err))
	}
	if vals == nil {
		return 0, backoff.Permanent(fmt.Errorf("%w: null body", ErrDecode))
	}
	// the body must be exactly one array
	if err := dec.Decode(&json.RawMessage{}); !errors.Is(err, io.EOF) {
		return 0, backoff.Permanent(fmt.Errorf("%w: trailing data after array", ErrDecode))
	}
	if len(*vals) == 0 {
		return 0, backoff.Permanent(ErrEmptyResult)
	}
	v := (*vals)[0]
	if v < c.min || v > c.max {
		return 0, backoff.Permanent(fmt.Errorf("%w: %d not in [%d,%d]", ErrOutOfRange, v, c.min, c.max))
	}
	return v, nil
}

func isPermanent(err error) bool {
	var p *backoff.PermanentError
	return errors.As(err, &p)
}
