// Package gtfsrt reads service alerts from a GTFS-Realtime protobuf feed.
package gtfsrt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/proto"

	"github.com/movilityai/movility/internal/provider/resilience"
	"github.com/movilityai/movility/internal/transit"
)

const (
	// ProviderName identifies this alerts provider.
	ProviderName = "gtfs-rt"

	DefaultTimeout  = 10 * time.Second
	DefaultLanguage = "es"

	// maxFeedBytes caps the body read from the feed.
	maxFeedBytes = 16 << 20
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the GTFS-RT client.
type ClientConfig struct {
	// URL of the service alerts feed (required).
	URL string

	// Language is the preferred translation for header and description.
	Language string

	Timeout    time.Duration
	HTTPClient HTTPDoer
	Registry   *resilience.Registry
	Logger     zerolog.Logger
}

// Client fetches and decodes a service alerts feed.
type Client struct {
	url        string
	lang       string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new GTFS-RT alerts client.
func NewClient(cfg ClientConfig) *Client {
	lang := cfg.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.MaxRetries = 2
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = &cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		url:        cfg.URL,
		lang:       lang,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Alerts fetches the feed and returns every alert entity it carries.
func (c *Client) Alerts(ctx context.Context) ([]transit.Alert, error) {
	feed, err := c.fetchFeed(ctx)
	if err != nil {
		return nil, err
	}

	alerts := make([]transit.Alert, 0, len(feed.GetEntity()))
	for _, entity := range feed.GetEntity() {
		if entity.GetIsDeleted() || entity.GetAlert() == nil {
			continue
		}
		alerts = append(alerts, c.toAlert(entity.GetId(), entity.GetAlert()))
	}

	c.logger.Debug().
		Int("entities", len(feed.GetEntity())).
		Int("alerts", len(alerts)).
		Msg("service alerts feed decoded")
	return alerts, nil
}

func (c *Client) fetchFeed(ctx context.Context) (*gtfsrtpb.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/x-protobuf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", transit.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code %d", transit.ErrProviderUnavailable, resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading feed: %w", transit.ErrProviderUnavailable, err)
	}

	var feed gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(b, &feed); err != nil {
		return nil, fmt.Errorf("%w: decoding feed: %w", transit.ErrProviderUnavailable, err)
	}
	return &feed, nil
}

func (c *Client) toAlert(id string, a *gtfsrtpb.Alert) transit.Alert {
	alert := transit.Alert{
		ID:          id,
		Header:      c.text(a.GetHeaderText()),
		Description: c.text(a.GetDescriptionText()),
		Cause:       a.GetCause().String(),
		Effect:      a.GetEffect().String(),
	}

	for _, tr := range a.GetActivePeriod() {
		var p transit.Period
		if s := tr.GetStart(); s > 0 {
			p.Start = time.Unix(int64(s), 0)
		}
		if e := tr.GetEnd(); e > 0 {
			p.End = time.Unix(int64(e), 0)
		}
		alert.ActivePeriods = append(alert.ActivePeriods, p)
	}

	for _, sel := range a.GetInformedEntity() {
		if r := sel.GetRouteId(); r != "" {
			alert.RouteIDs = append(alert.RouteIDs, r)
		}
		if s := sel.GetStopId(); s != "" {
			alert.StopIDs = append(alert.StopIDs, s)
		}
	}
	return alert
}

// text picks the preferred language, then an untagged entry, then the first.
func (c *Client) text(ts *gtfsrtpb.TranslatedString) string {
	var untagged, first string
	for _, tr := range ts.GetTranslation() {
		switch tr.GetLanguage() {
		case c.lang:
			return tr.GetText()
		case "":
			if untagged == "" {
				untagged = tr.GetText()
			}
		}
		if first == "" {
			first = tr.GetText()
		}
	}
	if untagged != "" {
		return untagged
	}
	return first
}
