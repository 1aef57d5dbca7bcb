package request

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"wikientity/pkg/cache"
	"wikientity/pkg/tracker"
	"wikientity/pkg/version"
)

var (
	// ErrRateLimited is returned when the upstream keeps answering 429 past the configured attempt cap.
	ErrRateLimited = errors.New("upstream rate limited")
	// ErrNetwork indicates a transport-level failure (DNS, connection, read).
	ErrNetwork = errors.New("upstream network error")
)

var defaultUserAgent = version.UserAgent()

// Response is the raw result of a GET request.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	Cached bool
}

// Client handles HTTP requests with queuing, caching, and tracking.
type Client struct {
	httpClient  *http.Client
	cache       cache.Cacher
	tracker     *tracker.Tracker
	logger      *slog.Logger
	userAgent   string
	backoff     Backoff
	timer       retry.Timer
	minInterval time.Duration

	// Queues per provider (domain)
	queues map[string]chan job
	mu     sync.Mutex // Protects queues map
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// WithLogger sets the logger used for request logs.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// WithUserAgent overrides the default User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithBackoff sets the rate-limit backoff policy.
func WithBackoff(b Backoff) Option { return func(c *Client) { c.backoff = b } }

// WithTimer replaces the clock used for backoff waits.
func WithTimer(t retry.Timer) Option { return func(c *Client) { c.timer = t } }

// WithMinInterval sets the minimum gap between two requests to the same provider.
func WithMinInterval(d time.Duration) Option { return func(c *Client) { c.minInterval = d } }

// job represents a queued request.
type job struct {
	req      *http.Request
	headers  map[string]string
	cacheKey string
	respChan chan jobResult
}

type jobResult struct {
	resp *Response
	err  error
}

// New creates a new Client.
func New(c cache.Cacher, t *tracker.Tracker, opts ...Option) *Client {
	if c == nil {
		c = cache.NoCache{}
	}
	if t == nil {
		t = tracker.New()
	}
	cl := &Client{
		httpClient:  &http.Client{Timeout: 300 * time.Second},
		cache:       c,
		tracker:     t,
		logger:      slog.Default(),
		userAgent:   defaultUserAgent,
		backoff:     DefaultBackoff(),
		minInterval: 100 * time.Millisecond,
		queues:      make(map[string]chan job),
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// Get performs a GET request with queuing and caching if key is provided.
// Non-2xx responses are returned as errors.
func (c *Client) Get(ctx context.Context, u, cacheKey string) ([]byte, error) {
	return c.GetWithHeaders(ctx, u, nil, cacheKey)
}

// GetWithHeaders performs a GET request with custom headers and optional caching.
func (c *Client) GetWithHeaders(ctx context.Context, u string, headers map[string]string, cacheKey string) ([]byte, error) {
	resp, err := c.Fetch(ctx, u, nil, headers, cacheKey)
	if err != nil {
		return nil, err
	}
	if resp.Status >= 400 {
		return nil, fmt.Errorf("api error: status %d", resp.Status)
	}
	return resp.Body, nil
}

// Fetch performs a GET request and returns status, headers and body regardless of the status code.
// params are merged into the URL query. When cacheKey is set, a cached body is returned without
// touching the network and successful (2xx) bodies are stored under it.
func (c *Client) Fetch(ctx context.Context, u string, params url.Values, headers map[string]string, cacheKey string) (*Response, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if len(params) > 0 {
		q := parsedURL.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		parsedURL.RawQuery = q.Encode()
	}
	provider := normalizeProvider(parsedURL.Host)

	// 1. Check Cache (Only if key is provided)
	if cacheKey != "" {
		if val, hit := c.cache.GetCache(ctx, cacheKey); hit {
			c.tracker.TrackCacheHit(provider)
			c.logger.Debug("Cache Hit", "provider", provider, "key", cacheKey)
			return &Response{Status: http.StatusOK, Header: http.Header{}, Body: val, Cached: true}, nil
		}
		c.tracker.TrackCacheMiss(provider)
		c.logger.Debug("Cache Miss", "provider", provider, "key", cacheKey)
	}

	// 2. Enqueue Request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsedURL.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	respChan := make(chan jobResult, 1)
	j := job{req: req, headers: headers, cacheKey: cacheKey, respChan: respChan}

	c.dispatch(provider, j)

	// 3. Wait for Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-respChan:
		return res.resp, res.err
	}
}

func normalizeProvider(host string) string {
	// Group all wikidata subdomains (www, query, etc.) into one "wikidata" provider for serialization
	if strings.HasSuffix(host, ".wikidata.org") || host == "wikidata.org" {
		return "wikidata"
	}
	if strings.HasSuffix(host, ".wikipedia.org") || host == "wikipedia.org" {
		return "wikipedia"
	}
	if strings.HasSuffix(host, ".wikimedia.org") || host == "wikimedia.org" {
		return "wikimedia"
	}
	return host
}

// dispatch sends the job to the provider's queue, creating the queue/worker if needed.
func (c *Client) dispatch(provider string, j job) {
	c.mu.Lock()
	q, ok := c.queues[provider]
	if !ok {
		q = make(chan job, 100)
		c.queues[provider] = q
		go c.worker(provider, q)
	}
	c.mu.Unlock()

	// We block here if the queue is full, effectively throttling the caller
	select {
	case q <- j:
	case <-j.req.Context().Done():
		// Caller gave up before we could even enqueue
		j.respChan <- jobResult{err: j.req.Context().Err()}
	}
}

// worker processes requests for a specific provider sequentially.
func (c *Client) worker(provider string, q <-chan job) {
	limit := rate.Inf
	if c.minInterval > 0 {
		limit = rate.Every(c.minInterval)
	}
	limiter := rate.NewLimiter(limit, 1)

	for j := range q {
		ctx := j.req.Context()
		if err := limiter.Wait(ctx); err != nil {
			c.logger.Warn("Job dropped from queue (context expired)", "provider", provider, "error", err)
			j.respChan <- jobResult{err: err}
			continue
		}

		// Apply User-Agent (Default if not provided)
		uaMatch := false
		for k, v := range j.headers {
			j.req.Header.Set(k, v)
			if http.CanonicalHeaderKey(k) == "User-Agent" {
				uaMatch = true
			}
		}
		if !uaMatch {
			j.req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.executeWithBackoff(provider, j.req)

		switch {
		case err != nil:
			c.tracker.TrackAPIFailure(provider)
		case resp.Status >= 200 && resp.Status < 300:
			c.tracker.TrackAPISuccess(provider)
			if j.cacheKey != "" {
				if err := c.cache.SetCache(context.Background(), j.cacheKey, resp.Body); err != nil {
					c.logger.Error("Failed to cache response", "url", j.req.URL, "error", err)
				}
			}
		default:
			c.tracker.TrackAPIFailure(provider)
		}

		j.respChan <- jobResult{resp: resp, err: err}
	}
}

// executeWithBackoff sends the request, retrying while the upstream answers 429.
// Transport errors are not retried.
func (c *Client) executeWithBackoff(provider string, req *http.Request) (*Response, error) {
	reqID := uuid.NewString()
	state := c.backoff.start()
	log := c.logger.With("request_id", reqID, "provider", provider)

	log.Info("Send request to Wikidata", "endpoint", req.URL.Scheme+"://"+req.URL.Host+req.URL.Path, "params", req.URL.Query())

	var out *Response
	attempt := 0
	opts := []retry.Option{
		retry.Context(req.Context()),
		retry.Attempts(c.backoff.MaxAttempts),
		retry.DelayType(func(_ uint, _ error, _ *retry.Config) time.Duration {
			return state.wait
		}),
		retry.LastErrorOnly(true),
	}
	if c.timer != nil {
		opts = append(opts, retry.WithTimer(c.timer))
	}

	err := retry.Do(func() error {
		attempt++
		resp, err := c.roundTrip(req)
		if err != nil {
			if req.Context().Err() != nil {
				return retry.Unrecoverable(req.Context().Err())
			}
			return retry.Unrecoverable(fmt.Errorf("%w: %v", ErrNetwork, err))
		}
		if resp.Status != http.StatusTooManyRequests {
			out = resp
			return nil
		}

		c.tracker.TrackRateLimited(provider)
		log.Warn("Request to wikidata endpoint failed. Retry.",
			"status", resp.Status,
			"headers", resp.Header,
			"attempt", attempt,
			"retry_after", state.wait)
		state.observe(resp.Header)
		return fmt.Errorf("%w: status %d after %d attempts", ErrRateLimited, resp.Status, attempt)
	}, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) roundTrip(req *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
