// Package connect is the session and token client for an Alpha Networks
// streaming account. It keeps the platform session alive, refreshes tokens
// using the configured login mode, negotiates a playback device at login,
// and resolves channels, guide data, stream URLs and license requests.
//
// A Client is not safe for concurrent use; hosts serialize access to it.
package connect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmylchreest/connectr/internal/cache"
	"github.com/jmylchreest/connectr/internal/config"
	"github.com/jmylchreest/connectr/internal/i18n"
	"github.com/jmylchreest/connectr/internal/observability"
	"github.com/jmylchreest/connectr/pkg/alphanet"
)

// Store keys.
const (
	KeyUsername     = "username"
	KeyPassword     = "password"
	KeyDeviceID     = "device_id"
	KeyDeviceToken  = "device_token"
	KeyAuthToken    = "auth_token"
	KeyTokenExpires = "token_expires"
)

// Cache keys.
const (
	CacheKeyConfig     = "config"
	CacheKeyAppVersion = "app_version"
	CacheKeyChannels   = "channels"
)

// credentialKeys are removed from the store on logout.
var credentialKeys = []string{
	KeyPassword,
	KeyDeviceID,
	KeyDeviceToken,
	KeyAuthToken,
	KeyTokenExpires,
	KeyUsername,
}

// Store persists credentials and tokens. Get returns "" for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Prompter asks the user to make choices during device negotiation.
type Prompter interface {
	// Select returns the chosen option index, or -1 when the user cancels.
	Select(title string, options []string) (int, error)
	Input(title string) (string, error)
	YesNo(message string) (bool, error)
	Error(message string)
	// Refresh tells the host that login state changed underneath it.
	Refresh()
}

// NopPrompter cancels every prompt. It suits hosts that never log in
// interactively.
type NopPrompter struct{}

func (NopPrompter) Select(string, []string) (int, error) { return -1, nil }
func (NopPrompter) Input(string) (string, error)          { return "", nil }
func (NopPrompter) YesNo(string) (bool, error)            { return false, nil }
func (NopPrompter) Error(string)                          {}
func (NopPrompter) Refresh()                              {}

// Client is the streaming service client.
type Client struct {
	cfg       config.ServiceConfig
	ttl       config.CacheConfig
	transport alphanet.Transport
	store     Store
	cache     cache.Cache
	prompter  Prompter
	printer   i18n.Printer
	logger    *slog.Logger
	now       func() time.Time
	strategy  loginStrategy

	authHeaders http.Header
	loggedIn    bool
}

// Option configures a Client.
type Option func(*Client)

// WithCache sets the cache used for app settings, app version and channels.
func WithCache(c cache.Cache) Option {
	return func(cl *Client) {
		cl.cache = c
	}
}

// WithCacheTTLs overrides the cache windows.
func WithCacheTTLs(ttl config.CacheConfig) Option {
	return func(cl *Client) {
		cl.ttl = ttl
	}
}

// WithPrompter sets the user-interaction collaborator.
func WithPrompter(p Prompter) Option {
	return func(cl *Client) {
		cl.prompter = p
	}
}

// WithPrinter sets the message printer.
func WithPrinter(p i18n.Printer) Option {
	return func(cl *Client) {
		cl.printer = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		cl.now = now
	}
}

// New creates a client and loads any stored tokens. The transport's response
// hook is replaced with the client's HTTP status check.
func New(ctx context.Context, cfg config.ServiceConfig, transport alphanet.Transport, store Store, opts ...Option) (*Client, error) {
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}

	strategy, err := strategyFor(cfg.LoginType)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:       cfg,
		ttl:       config.CacheConfig{ConfigTTL: time.Hour, AppVersionTTL: time.Hour, ChannelsTTL: 10 * time.Minute},
		transport: transport,
		store:     store,
		prompter:  NopPrompter{},
		logger:    slog.Default(),
		now:       time.Now,
		strategy:  strategy,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.cache == nil {
		c.cache = cache.NewMemory()
	}
	if c.printer == nil {
		c.printer = i18n.New(cfg.Locale)
	}
	c.logger = observability.WithComponent(c.logger, "connect")

	if err := c.newSession(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// LoggedIn reports whether both a device token and an auth token are stored.
func (c *Client) LoggedIn() bool {
	return c.loggedIn
}

// LoginType returns the configured login mode.
func (c *Client) LoginType() string {
	return c.strategy.mode()
}

// newSession returns the transport to a fresh unauthenticated state and
// reloads authentication from the store.
func (c *Client) newSession(ctx context.Context) error {
	c.resetSession()
	return c.loadAuthentication(ctx)
}

// resetSession drops in-memory authentication and transport state without
// touching the store.
func (c *Client) resetSession() {
	c.transport.Reset()
	c.transport.SetAfterResponse(c.checkResponse)
	c.authHeaders = nil
	c.loggedIn = false
}

func (c *Client) loadAuthentication(ctx context.Context) error {
	deviceToken, err := c.store.Get(ctx, KeyDeviceToken)
	if err != nil {
		return fmt.Errorf("loading device token: %w", err)
	}
	authToken, err := c.store.Get(ctx, KeyAuthToken)
	if err != nil {
		return fmt.Errorf("loading auth token: %w", err)
	}

	if deviceToken == "" || authToken == "" {
		return nil
	}

	c.authHeaders = http.Header{}
	c.authHeaders.Set(alphanet.HeaderCustomerAuthToken, authToken)
	c.authHeaders.Set(alphanet.HeaderDeviceAuthToken, deviceToken)
	c.loggedIn = true
	return nil
}

// AuthHeaders returns a copy of the headers that authorize requests for the
// current session. It is empty when logged out.
func (c *Client) AuthHeaders() http.Header {
	if c.authHeaders == nil {
		return http.Header{}
	}
	return c.authHeaders.Clone()
}

// checkResponse turns non-2xx responses into domain errors.
func (c *Client) checkResponse(resp *alphanet.Response) error {
	if resp.OK() {
		return nil
	}

	if resp.StatusCode == http.StatusUnavailableForLegalReasons {
		return &APIError{Message: c.printer.Sprintf(i18n.GeoBlocked), Status: resp.StatusCode}
	}
	return &APIError{
		Message: c.printer.Sprintf(i18n.HTTPError, resp.StatusCode),
		Status:  resp.StatusCode,
	}
}

// wrap leaves domain errors untouched and hides anything else behind the
// generic unexpected-response message.
func (c *Client) wrap(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}
	return &APIError{Message: c.printer.Sprintf(i18n.UnexpectedResponse), Err: err}
}

// serverError converts a failed envelope into an APIError carrying message.
func serverError(body *alphanet.ErrorBody, message string) *APIError {
	return &APIError{Message: message, Code: body.Code.Int(), Err: body}
}

func post[T any](ctx context.Context, c *Client, path string, opts ...alphanet.RequestOption) (*alphanet.Envelope[T], error) {
	resp, err := c.transport.Post(ctx, path, opts...)
	if err != nil {
		return nil, c.wrap(err)
	}
	env, err := alphanet.DecodeEnvelope[T](resp)
	if err != nil {
		return nil, c.wrap(err)
	}
	return env, nil
}

func get[T any](ctx context.Context, c *Client, path string, opts ...alphanet.RequestOption) (*alphanet.Envelope[T], error) {
	resp, err := c.transport.Get(ctx, path, opts...)
	if err != nil {
		return nil, c.wrap(err)
	}
	env, err := alphanet.DecodeEnvelope[T](resp)
	if err != nil {
		return nil, c.wrap(err)
	}
	return env, nil
}
