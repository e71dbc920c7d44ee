package alphanet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// DefaultTimeout applies when no HTTP client is supplied.
const DefaultTimeout = 30 * time.Second

// Web-service headers.
const (
	HeaderIdentityKey       = "X-AN-WebService-IdentityKey"
	HeaderCustomerAuthToken = "X-AN-WebService-CustomerAuthToken"
	HeaderDeviceAuthToken   = "X-AN-WebService-DeviceAuthToken"

	headerUserAgent   = "User-Agent"
	headerContentType = "Content-Type"
	formContentType   = "application/x-www-form-urlencoded"
)

// Endpoint paths, relative to the platform URL.
const (
	PathLoginDevice      = "proxy/loginDevice"
	PathAvailableDevices = "proxy/casAvailableDevice"
	PathLogin            = "proxy/login"
	PathRemoveDevice     = "proxy/casRemoveDevice"
	PathDeviceAuth       = "proxy/casAuth"
	PathListChannels     = "proxy/listChannels"
	PathChannelStream    = "proxy/channelStream"
	PathImageData        = "proxy/imgdata"
	PathEPGFiltered      = "cms/epg/filtered"
	PathLicenseWidevine  = "arkena/askLicenseWV"
)

// Transport performs requests against the platform web service. Relative
// paths resolve against the current base URL; absolute URLs are used as is.
type Transport interface {
	BaseURL() string
	SetBaseURL(base string)
	Header(key string) string
	SetHeader(key, value string)
	SetAfterResponse(hook AfterResponseFunc)
	Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error)
	Post(ctx context.Context, path string, opts ...RequestOption) (*Response, error)
	Reset()
}

// AfterResponseFunc inspects every response. A non-nil error is returned to
// the caller in place of the response.
type AfterResponseFunc func(resp *Response) error

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Text returns the body with surrounding whitespace removed.
func (r *Response) Text() string {
	return strings.TrimSpace(string(r.Body))
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response from %s: %w", r.URL, err)
	}
	return nil
}

// DecodeEnvelope decodes a web-service envelope with a typed result.
func DecodeEnvelope[T any](r *Response) (*Envelope[T], error) {
	var env Envelope[T]
	if err := r.JSON(&env); err != nil {
		return nil, err
	}
	return &env, nil
}

// requestOptions collects per-call overrides.
type requestOptions struct {
	header http.Header
	params url.Values
	form   url.Values
}

// RequestOption customizes a single request.
type RequestOption func(*requestOptions)

// WithHeader sets a header for one request, overriding any default.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.header.Set(key, value)
	}
}

// WithHeaders merges h into the request headers.
func WithHeaders(h http.Header) RequestOption {
	return func(o *requestOptions) {
		for k, vs := range h {
			o.header.Del(k)
			for _, v := range vs {
				o.header.Add(k, v)
			}
		}
	}
}

// WithParams adds query parameters.
func WithParams(params url.Values) RequestOption {
	return func(o *requestOptions) {
		for k, vs := range params {
			o.params[k] = append(o.params[k], vs...)
		}
	}
}

// WithForm sends form as an urlencoded body.
func WithForm(form url.Values) RequestOption {
	return func(o *requestOptions) {
		o.form = form
	}
}

// Client is the default Transport. It is not safe for concurrent use.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	userAgent     string
	headers       http.Header
	afterResponse AfterResponseFunc
	limiter       *rate.Limiter
	logger        *slog.Logger
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// NewClient creates a transport with a fresh cookie jar.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		headers:    make(http.Header),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Reset()
	return c
}

// WithHTTPClient sets the underlying HTTP client. The client is copied so
// that resetting the cookie jar does not affect other users of it.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		cp := *client
		c.httpClient = &cp
	}
}

// WithUserAgent sets the User-Agent sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimiter throttles outgoing requests. A nil limiter disables it.
func WithRateLimiter(limiter *rate.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithAfterResponse installs the response hook.
func WithAfterResponse(hook AfterResponseFunc) ClientOption {
	return func(c *Client) {
		c.afterResponse = hook
	}
}

// BaseURL returns the current base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetBaseURL sets the URL relative paths resolve against.
func (c *Client) SetBaseURL(base string) {
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	c.baseURL = base
}

// Header returns a default header value.
func (c *Client) Header(key string) string {
	return c.headers.Get(key)
}

// SetHeader sets a header sent with every request.
func (c *Client) SetHeader(key, value string) {
	c.headers.Set(key, value)
}

// SetAfterResponse replaces the response hook.
func (c *Client) SetAfterResponse(hook AfterResponseFunc) {
	c.afterResponse = hook
}

// Reset returns the transport to a fresh unauthenticated state: no base URL,
// only the User-Agent default header, and an empty cookie jar. The response
// hook is kept.
func (c *Client) Reset() {
	c.baseURL = ""
	c.headers = make(http.Header)
	if c.userAgent != "" {
		c.headers.Set(headerUserAgent, c.userAgent)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		// cookiejar.New never fails with a non-nil options value.
		c.logger.Warn("creating cookie jar", slog.String("error", err.Error()))
		return
	}
	c.httpClient.Jar = jar
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, opts)
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, opts)
}

// ResolveURL returns the absolute URL for path.
func (c *Client) ResolveURL(path string) string {
	return ResolveURL(c.baseURL, path)
}

// ResolveURL joins path onto base unless path is already absolute.
func ResolveURL(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return base + strings.TrimPrefix(path, "/")
}

func (c *Client) do(ctx context.Context, method, path string, opts []RequestOption) (*Response, error) {
	o := requestOptions{header: make(http.Header), params: make(url.Values)}
	for _, opt := range opts {
		opt(&o)
	}

	target := c.ResolveURL(path)
	if len(o.params) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + o.params.Encode()
	}

	var body io.Reader
	if o.form != nil {
		body = strings.NewReader(o.form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, vs := range c.headers {
		req.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range o.header {
		req.Header[k] = append([]string(nil), vs...)
	}
	if o.form != nil {
		req.Header.Set(headerContentType, formContentType)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	c.logger.DebugContext(ctx, "platform request",
		slog.String("method", method),
		slog.String("url", target),
	)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		URL:        target,
	}

	if c.afterResponse != nil {
		if err := c.afterResponse(resp); err != nil {
			return nil, err
		}
	}

	return resp, nil
}
