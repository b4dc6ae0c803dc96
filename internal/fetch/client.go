package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single request, body included.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize caps a single response body.
	DefaultMaxBodySize = 50 * 1024 * 1024 // 50MB

	// DefaultUserAgent identifies pageloader in HTTP requests.
	DefaultUserAgent = "pageloader/1.0 (+https://github.com/nao1215/pageloader)"

	// maxRedirects limits redirect chains.
	maxRedirects = 10
)

// Client downloads URLs over HTTP(S).
// It is safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	timeout      time.Duration
	maxBodySize  int64
	userAgent    string
	proxyAddress string
	cookie       string
	headers      map[string]string
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxBodySize sets the maximum accepted body size in bytes.
// Zero or a negative value keeps the default.
func WithMaxBodySize(size int64) Option {
	return func(c *Client) {
		if size > 0 {
			c.maxBodySize = size
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithProxy routes all requests through the SOCKS5 proxy at address
// ("host:port"). An empty address disables the proxy.
func WithProxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithCookie sends cookie ("name=value; other=value") with every request.
func WithCookie(cookie string) Option {
	return func(c *Client) {
		c.cookie = cookie
	}
}

// WithHeaders sends the given headers with every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.headers = headers
	}
}

// WithRateLimit allows at most rps requests per second across all
// goroutines sharing the client. Zero disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithLimiter shares limiter between clients, so several clients together
// stay under one request rate. A nil limiter disables throttling.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithHTTPClient replaces the underlying HTTP client.
// Proxy and timeout options are ignored when it is set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		timeout:     DefaultTimeout,
		maxBodySize: DefaultMaxBodySize,
		userAgent:   DefaultUserAgent,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		hc, err := c.newHTTPClient()
		if err != nil {
			return nil, err
		}
		c.httpClient = hc
	}

	// Every request goes through the injector so headers survive redirects.
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *c.httpClient
	wrapped.Transport = &headerInjectingTransport{
		base:      base,
		userAgent: c.userAgent,
		cookie:    c.cookie,
		headers:   c.headers,
	}
	c.httpClient = &wrapped

	return c, nil
}

// newHTTPClient builds the default HTTP client, optionally dialing through
// a SOCKS5 proxy.
func (c *Client) newHTTPClient() (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport

	if c.proxyAddress != "" {
		if !isValidProxyAddress(c.proxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// Fetch performs a GET request for rawURL and returns the raw body.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	body, _, err := c.get(ctx, rawURL)
	return body, err
}

// FetchPage is Fetch for pages: it also returns the URL the body was served
// from once redirects were followed. Relative references in the page resolve
// against that URL.
func (c *Client) FetchPage(ctx context.Context, rawURL string) ([]byte, *url.URL, error) {
	return c.get(ctx, rawURL)
}

// get performs the GET request shared by Fetch and FetchPage.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, *url.URL, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	c.logger.Debug("response received",
		"url", rawURL,
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)

	if !IsSuccess(resp.StatusCode) {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096) //nolint:errcheck // best effort
		return nil, nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, c.maxBodySize)
	}

	return body, resp.Request.URL, nil
}

// isValidProxyAddress checks that address is "host:port" with a port in 1-65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// headerInjectingTransport adds the configured User-Agent, cookie and
// headers to every request.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	cookie    string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" && clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
