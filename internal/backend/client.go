// Package backend is the REST client for the external storefront API.
// Every response is wrapped in a {status, data, message} envelope.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Cheertaboi/jewelry-storefront/internal/apperr"
	"github.com/Cheertaboi/jewelry-storefront/internal/cache"
	"github.com/Cheertaboi/jewelry-storefront/internal/models"
)

const (
	maxResponseBytes = 4 << 20
	offersCacheKey   = "offers"
	guestHeader      = "X-Guest-ID"
)

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second; 0 disables throttling
	Burst     int
	OffersTTL time.Duration
}

// Observer is told about every backend call, e.g. to record latency
type Observer func(endpoint string, elapsed time.Duration, err error)

// StatusError is a non-success answer from the backend
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: HTTP %d: %s", e.StatusCode, e.Message)
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	offers     *cache.TTLCache[string, []models.Offer]
	logger     *zap.Logger
	observe    Observer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observe = o }
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.OffersTTL <= 0 {
		cfg.OffersTTL = 5 * time.Minute
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		offers:     cache.NewTTLCache[string, []models.Offer](cfg.OffersTTL),
		logger:     zap.NewNop(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, body, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.observe != nil {
			c.observe(endpoint, time.Since(start), err)
		}
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return apperr.Wrap(apperr.KindNetwork, "backend_throttled", "Too many requests, please try again", err)
		}
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: marshal %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("backend: build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	creds := CredentialsFrom(ctx)
	switch {
	case creds.Token != "":
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	case creds.GuestID != "":
		req.Header.Set(guestHeader, creds.GuestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Warn("backend request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return apperr.Wrap(apperr.KindNetwork, "backend_unavailable",
			"The store is temporarily unreachable. Please try again.", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperr.Wrap(apperr.KindNetwork, "backend_unavailable",
			"The store is temporarily unreachable. Please try again.", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode >= 400 || env.Status == "error" {
		return classify(resp.StatusCode, env.Message)
	}
	if decodeErr != nil {
		return apperr.Wrap(apperr.KindNetwork, "bad_response", "Unexpected response from the store", decodeErr)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperr.Wrap(apperr.KindNetwork, "bad_response", "Unexpected response from the store", err)
	}
	return nil
}

func classify(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	cause := &StatusError{StatusCode: status, Message: message}

	switch {
	case status == http.StatusUnauthorized:
		e := apperr.AuthRequired("")
		e.Err = cause
		return e
	case status == http.StatusConflict || strings.Contains(strings.ToLower(message), "stock"):
		return apperr.Wrap(apperr.KindStockConflict, "insufficient_stock", message, cause)
	case status >= 500:
		return apperr.Wrap(apperr.KindNetwork, "backend_unavailable",
			"The store is temporarily unavailable. Please try again.", cause)
	default:
		return apperr.Wrap(apperr.KindNetwork, "request_rejected", message, cause)
	}
}

// rejected reports whether err is the backend turning the request down:
// a 4xx other than 401, or an error envelope on a successful status.
func rejected(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode < 500 && se.StatusCode != http.StatusUnauthorized {
		return se, true
	}
	return nil, false
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
