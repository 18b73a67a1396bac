// Package overpass queries OpenStreetMap through the Overpass API, trying a
// fixed list of public mirrors in order.
package overpass

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/movilityai/movility/internal/cache"
	"github.com/movilityai/movility/internal/provider/resilience"
)

const (
	// ProviderName prefixes the per-mirror names in the provider registry.
	ProviderName = "overpass"

	DefaultTimeout   = 60 * time.Second
	DefaultRetries   = 2
	DefaultSleep     = 1500 * time.Millisecond
	DefaultUserAgent = "MovilityAI/1.0 (contact: dev@example.com)"
	DefaultCacheTTL  = 6 * time.Hour
)

// DefaultMirrors are tried in this order.
var DefaultMirrors = []string{
	"https://overpass.kumi.systems/api/interpreter",
	"https://overpass-api.de/api/interpreter",
	"https://overpass.osm.ch/api/interpreter",
	"https://overpass.openstreetmap.ru/api/interpreter",
}

// ErrAllMirrorsFailed is returned when no mirror produced a usable response.
var ErrAllMirrorsFailed = errors.New("overpass: all mirrors failed")

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Overpass client.
type ClientConfig struct {
	// Mirrors replaces DefaultMirrors when non-empty.
	Mirrors []string

	// Timeout bounds each attempt.
	Timeout time.Duration

	// Retries is the number of attempts per mirror.
	Retries int

	// Sleep is the fixed delay after a failed attempt.
	Sleep time.Duration

	UserAgent string

	// Cache stores successful responses keyed by query hash. Optional.
	Cache    cache.Store
	CacheTTL time.Duration

	// HTTPClient, when set, is shared by every mirror. Otherwise each mirror
	// gets its own single-shot resilient client and circuit breaker.
	HTTPClient HTTPDoer

	Registry *resilience.Registry
	Logger   zerolog.Logger
}

type mirror struct {
	url    string
	client HTTPDoer
}

// Client posts Overpass QL queries to mirrors with fallback.
type Client struct {
	mirrors   []mirror
	timeout   time.Duration
	retries   int
	sleep     time.Duration
	userAgent string
	cache     cache.Store
	cacheTTL  time.Duration
	logger    zerolog.Logger
}

// NewClient creates a new Overpass client.
func NewClient(cfg ClientConfig) *Client {
	urls := cfg.Mirrors
	if len(urls) == 0 {
		urls = DefaultMirrors
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}
	sleep := cfg.Sleep
	if sleep < 0 {
		sleep = 0
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = DefaultCacheTTL
	}

	mirrors := make([]mirror, 0, len(urls))
	for _, u := range urls {
		client := cfg.HTTPClient
		if client == nil {
			clientCfg := resilience.DefaultClientConfig(mirrorName(u))
			clientCfg.Timeout = timeout
			clientCfg.DisableRetries = true
			clientCfg.Registry = cfg.Registry
			clientCfg.Logger = &cfg.Logger
			client = resilience.NewClient(clientCfg)
		}
		mirrors = append(mirrors, mirror{url: u, client: client})
	}

	return &Client{
		mirrors:   mirrors,
		timeout:   timeout,
		retries:   retries,
		sleep:     sleep,
		userAgent: userAgent,
		cache:     cfg.Cache,
		cacheTTL:  cacheTTL,
		logger:    cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// Budget is the longest a single Query can take when every attempt on every
// mirror runs into its timeout.
func (c *Client) Budget() time.Duration {
	return time.Duration(len(c.mirrors)*c.retries) * (c.timeout + c.sleep)
}

// mirrorName turns a mirror URL into a registry name such as "overpass:overpass-api.de".
func mirrorName(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return ProviderName + ":" + u.Host
	}
	return ProviderName + ":" + raw
}

// Query runs ql against each mirror in order, attempting each one up to
// Retries times. Transport errors, non-200 responses, malformed JSON and
// empty element lists are soft failures that move on to the next attempt.
// The first response with elements wins. If every mirror answered but none
// had elements, an empty response is returned without error.
func (c *Client) Query(ctx context.Context, ql string) (*Response, error) {
	key := cacheKey(ql)
	if resp, ok := c.fromCache(ctx, key); ok {
		return resp, nil
	}

	var (
		lastErr  error
		answered bool
		first    = true
	)
	for _, m := range c.mirrors {
		for attempt := 1; attempt <= c.retries; attempt++ {
			if !first {
				if err := c.wait(ctx); err != nil {
					return nil, err
				}
			}
			first = false

			resp, err := c.post(ctx, m, ql)
			if err != nil {
				lastErr = err
				c.logger.Warn().
					Err(err).
					Str("mirror", m.url).
					Int("attempt", attempt).
					Msg("overpass attempt failed")
				continue
			}
			answered = true
			if len(resp.Elements) == 0 {
				c.logger.Info().Str("mirror", m.url).Msg("overpass mirror returned no elements")
				break
			}

			c.toCache(ctx, key, resp)
			return resp, nil
		}
	}

	if answered {
		return &Response{}, nil
	}
	return nil, fmt.Errorf("%w: last error: %v", ErrAllMirrorsFailed, lastErr)
}

func (c *Client) post(ctx context.Context, m mirror, ql string) (*Response, error) {
	form := url.Values{"data": {ql}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &parsed, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.sleep == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.sleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) fromCache(ctx context.Context, key string) (*Response, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("store", c.cache.Name()).Msg("overpass cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.logger.Warn().Err(err).Msg("discarding corrupt overpass cache entry")
		return nil, false
	}
	c.logger.Debug().Str("store", c.cache.Name()).Int("elements", len(resp.Elements)).Msg("overpass cache hit")
	return &resp, true
}

func (c *Client) toCache(ctx context.Context, key string, resp *Response) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.cacheTTL); err != nil {
		c.logger.Warn().Err(err).Str("store", c.cache.Name()).Msg("overpass cache write failed")
	}
}

func cacheKey(ql string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(ql)))
	return "overpass:" + hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
