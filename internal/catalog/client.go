// Package catalog queries the metadata catalog for auxiliary products and
// EDRS sessions.
package catalog

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"groundseg/internal/config"
	"groundseg/internal/constants"
	"groundseg/internal/logger"
	"groundseg/pkg/errors"
	"groundseg/pkg/metrics"
	"groundseg/pkg/retry"
)

const (
	routeAux     = "aux"
	routeSession = "session"

	// catalogTimeFormat is the microsecond UTC layout the catalog expects in
	// t0/t1.
	catalogTimeFormat = "2006-01-02T15:04:05.000000Z"
)

type AuxCatalogData struct {
	ProductName       string    `json:"productName"`
	ProductFamily     string    `json:"productFamily"`
	ProductType       string    `json:"productType"`
	KeyObjectStorage  string    `json:"keyObjectStorage"`
	StoragePath       string    `json:"storagePath,omitempty"`
	SatelliteID       string    `json:"satelliteId"`
	BandIndexID       string    `json:"bandIndexId,omitempty"`
	ValidityStartTime time.Time `json:"validityStartTime"`
	ValidityStopTime  time.Time `json:"validityStopTime"`
	InsertionTime     time.Time `json:"insertionTime"`
}

type SessionCatalogData struct {
	ProductName      string    `json:"productName"`
	KeyObjectStorage string    `json:"keyObjectStorage"`
	SessionID        string    `json:"sessionId"`
	SatelliteID      string    `json:"satelliteId"`
	StationCode      string    `json:"stationCode"`
	ChannelID        int       `json:"channelId"`
	StartTime        time.Time `json:"startTime"`
	StopTime         time.Time `json:"stopTime"`
	RawNames         []string  `json:"rawNames,omitempty"`
}

// statusError is a non-2xx answer. It only lives between attempts; callers
// see the structured catalog errors.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("catalog returned status %d: %s", e.status, e.body)
}

// Client is an explicit catalog handle. Each request is bounded by the
// configured timeout and retried max_retry times with a fixed delay.
type Client struct {
	baseURL string
	cfg     config.CatalogConfig
	http    *http.Client
	logger  logger.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the transport. The configured timeout is applied
// to a copy, so c itself is left untouched.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		hc := *c
		cl.http = &hc
	}
}

func NewClient(cfg config.CatalogConfig, log logger.Logger, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid catalog url %q: %w", cfg.URL, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultHTTPTimeout
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		cfg:     cfg,
		http:    &http.Client{},
		logger:  log,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.Timeout = cfg.Timeout
	return c, nil
}

// RetrieveLatestAuxData returns the first auxiliary product of productType
// valid over [from, to], or nil when the catalog has none.
func (c *Client) RetrieveLatestAuxData(ctx context.Context, productType, satellite string, from, to time.Time, bandIndexID string) (*AuxCatalogData, error) {
	c.logger.DebugwCtx(ctx, "Retrieving latest AUX data", "product_type", productType)

	query := url.Values{}
	query.Set("productType", productType)
	query.Set("mode", c.cfg.Mode)
	query.Set("satellite", satellite)
	query.Set("t0", from.UTC().Format(catalogTimeFormat))
	query.Set("t1", to.UTC().Format(catalogTimeFormat))
	if strings.TrimSpace(bandIndexID) != "" {
		query.Set("bandIndexId", bandIndexID)
	}

	endpoint := fmt.Sprintf("%s/metadata/%s/search?%s", c.baseURL, url.PathEscape(c.cfg.AuxProductFamily), query.Encode())

	var data []AuxCatalogData
	if err := c.query(ctx, routeAux, endpoint, &data); err != nil {
		return nil, err
	}

	c.logger.DebugwCtx(ctx, "Found AUX data", "product_type", productType, "count", len(data))
	if len(data) == 0 {
		return nil, nil
	}
	return &data[0], nil
}

// RetrieveSessionData lists the catalog entries of one EDRS session.
func (c *Client) RetrieveSessionData(ctx context.Context, sessionID string) ([]SessionCatalogData, error) {
	c.logger.DebugwCtx(ctx, "Retrieving SESSION data", "session_id", sessionID)

	endpoint := fmt.Sprintf("%s/edrsSession/sessionId/%s", c.baseURL, url.PathEscape(sessionID))

	var data []SessionCatalogData
	if err := c.query(ctx, routeSession, endpoint, &data); err != nil {
		return nil, err
	}

	c.logger.DebugwCtx(ctx, "Found SESSION data", "session_id", sessionID, "count", len(data))
	if data == nil {
		data = []SessionCatalogData{}
	}
	return data, nil
}

func (c *Client) query(ctx context.Context, route, endpoint string, out interface{}) error {
	start := time.Now()

	err := retry.Constant(ctx, c.cfg.MaxRetry, c.cfg.RetryDelay, func() error {
		return c.get(ctx, endpoint, out)
	}, func(attempt int, err error, _ time.Duration) {
		metrics.IncCatalogRetry(route)
		c.logger.WarnwCtx(ctx, "Catalog query failed, retrying",
			"route", route,
			"attempt", attempt,
			"max_retry", c.cfg.MaxRetry,
			"error", err,
		)
	})
	metrics.ObserveCatalogDuration(route, time.Since(start))

	if err != nil {
		metrics.IncCatalogQuery(route, "error")
		return classify(route, endpoint, err)
	}
	metrics.IncCatalogQuery(route, "success")
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// classify maps the last attempt's failure to one catalog error code.
func classify(route, endpoint string, err error) error {
	var appErr *errors.Error

	var se *statusError
	switch {
	case stderrors.As(err, &se) && se.status >= 400 && se.status < 500:
		appErr = errors.ErrCatalogClient.WithDetail("status", se.status)
	case stderrors.As(err, &se) && se.status >= 500:
		appErr = errors.ErrCatalogServer.WithDetail("status", se.status)
	default:
		appErr = errors.ErrCatalogQuery
	}

	return appErr.
		WithCause(err).
		WithDetail("route", route).
		WithDetail("url", endpoint)
}
