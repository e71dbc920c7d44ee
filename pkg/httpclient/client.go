// Package httpclient wraps net/http for calls to the streaming platform:
// a circuit breaker, transparent decompression, a response size cap and
// structured request logs.
//
// Requests are never retried. The breaker only keeps repeated user actions
// from hammering an upstream that is already down.
package httpclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// ErrCircuitOpen is returned by Do while the breaker rejects requests.
var ErrCircuitOpen = errors.New("circuit breaker is open")

const (
	DefaultTimeout              = 30 * time.Second
	DefaultCircuitThreshold     = 5
	DefaultCircuitTimeout       = 30 * time.Second
	DefaultAcceptEncodingHeader = "gzip, deflate, br"
)

const (
	HeaderAcceptEncoding  = "Accept-Encoding"
	HeaderContentEncoding = "Content-Encoding"
	HeaderUserAgent       = "User-Agent"
)

// Config holds client settings. The zero value is usable; DefaultConfig
// turns on decompression and the default breaker.
type Config struct {
	Timeout time.Duration

	// CircuitThreshold consecutive failures open the breaker for
	// CircuitTimeout.
	CircuitThreshold int
	CircuitTimeout   time.Duration

	// UserAgent is sent when the request has none.
	UserAgent string

	Logger *slog.Logger

	EnableDecompression bool

	// MaxResponseSize caps the decoded body. 0 disables the cap.
	MaxResponseSize int64

	// BaseClient performs the requests. Nil builds one with Timeout.
	BaseClient *http.Client
}

// DefaultConfig returns the settings used for platform calls.
func DefaultConfig() Config {
	return Config{
		Timeout:             DefaultTimeout,
		CircuitThreshold:    DefaultCircuitThreshold,
		CircuitTimeout:      DefaultCircuitTimeout,
		Logger:              slog.Default(),
		EnableDecompression: true,
	}
}

// Client sends requests through a circuit breaker.
type Client struct {
	config  Config
	client  *http.Client
	breaker *CircuitBreaker
	logger  *slog.Logger
}

// New returns a Client for cfg.
func New(cfg Config) *Client {
	c := &Client{
		config:  cfg,
		client:  cfg.BaseClient,
		breaker: NewCircuitBreaker(cfg.CircuitThreshold, cfg.CircuitTimeout),
		logger:  cfg.Logger,
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: cfg.Timeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Do sends req. Transport errors and 5xx responses count against the
// breaker; cancellation by the caller does not.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.setDefaultHeaders(req)

	log := c.logger.With(
		slog.String("method", req.Method),
		slog.String("url", req.URL.Redacted()))

	if !c.breaker.Allow() {
		log.Warn("circuit breaker open, request rejected")
		return nil, ErrCircuitOpen
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.breaker.RecordFailure()
		}
		log.Warn("request failed", slog.Duration("duration", elapsed), slog.Any("error", err))
		return nil, err
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		c.breaker.RecordFailure()
	} else {
		c.breaker.RecordSuccess()
	}
	log.Debug("request completed", slog.Int("status", resp.StatusCode), slog.Duration("duration", elapsed))

	if c.config.EnableDecompression {
		resp.Body = decodeBody(resp, log)
	}
	if c.config.MaxResponseSize > 0 {
		resp.Body = capBody(resp.Body, c.config.MaxResponseSize)
	}
	return resp, nil
}

func (c *Client) setDefaultHeaders(req *http.Request) {
	if c.config.UserAgent != "" && req.Header.Get(HeaderUserAgent) == "" {
		req.Header.Set(HeaderUserAgent, c.config.UserAgent)
	}
	if c.config.EnableDecompression && req.Header.Get(HeaderAcceptEncoding) == "" {
		req.Header.Set(HeaderAcceptEncoding, DefaultAcceptEncodingHeader)
	}
}

// CircuitState reports the breaker state.
func (c *Client) CircuitState() CircuitState {
	return c.breaker.State()
}

// StandardClient adapts c to *http.Client so it can be handed to code that
// expects one. jar may be nil.
func (c *Client) StandardClient(jar http.CookieJar) *http.Client {
	return &http.Client{
		Transport: roundTripperFunc(c.Do),
		Timeout:   c.config.Timeout,
		Jar:       jar,
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
