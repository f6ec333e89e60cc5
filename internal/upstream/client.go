// Package upstream talks to the ODPT open data API. Responses are decoded as
// loosely-typed JSON and normalized into models before anything else sees
// them; records missing required fields are dropped here.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jusunglee/railboard/internal/catalog"
	"github.com/jusunglee/railboard/internal/models"
)

const (
	DefaultBaseURL          = "https://api.odpt.org/api/v4"
	DefaultChallengeBaseURL = "https://api-challenge.odpt.org/api/v4"

	endpointTrain            = "odpt:Train"
	endpointStation          = "odpt:Station"
	endpointTrainInformation = "odpt:TrainInformation"
	endpointTrainTimetable   = "odpt:TrainTimetable"

	paramConsumerKey = "acl:consumerKey"
	paramRailway     = "odpt:railway"
	paramOperator    = "odpt:operator"

	maxErrorBody = 4 << 10
)

// ErrNoConsumerKey is returned when the key for the selected scope is empty
var ErrNoConsumerKey = errors.New("odpt consumer key is not configured")

// Scope is one of the two upstream credential and endpoint sets
type Scope int

const (
	ScopeStandard Scope = iota
	// ScopeChallenge serves the operators that publish realtime positions
	// only through the challenge API
	ScopeChallenge
)

func (s Scope) String() string {
	if s == ScopeChallenge {
		return "challenge"
	}
	return "standard"
}

// StatusError is a non-200 upstream response
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Config holds endpoints, credentials and retry settings
type Config struct {
	BaseURL              string
	ChallengeBaseURL     string
	ConsumerKey          string
	ChallengeConsumerKey string
	Timeout              time.Duration
	// MaxRetries bounds attempts after the first one
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
	TimetableLimit  int
}

// DefaultConfig returns a Config pointing at the public endpoints
func DefaultConfig() Config {
	return Config{
		BaseURL:          DefaultBaseURL,
		ChallengeBaseURL: DefaultChallengeBaseURL,
		Timeout:          30 * time.Second,
		MaxRetries:       3,
		InitialInterval:  500 * time.Millisecond,
		MaxElapsedTime:   20 * time.Second,
		TimetableLimit:   50,
	}
}

// Client queries ODPT
type Client struct {
	cfg        Config
	catalog    *catalog.Catalog
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client. The catalog decides which scope a railway or
// operator belongs to.
func NewClient(cfg Config, cat *catalog.Catalog, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ChallengeBaseURL == "" {
		cfg.ChallengeBaseURL = DefaultChallengeBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.ChallengeBaseURL = strings.TrimRight(cfg.ChallengeBaseURL, "/")

	return &Client{
		cfg:     cfg,
		catalog: cat,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// ScopeFor returns the scope required for a railway or operator id
func (c *Client) ScopeFor(id string) Scope {
	if c.catalog != nil && c.catalog.RequiresChallenge(id) {
		return ScopeChallenge
	}
	return ScopeStandard
}

func (c *Client) endpoint(scope Scope) (string, string, error) {
	if scope == ScopeChallenge {
		if c.cfg.ChallengeConsumerKey == "" {
			return "", "", fmt.Errorf("%w: set ODPT_CHALLENGE_CONSUMER_KEY", ErrNoConsumerKey)
		}
		return c.cfg.ChallengeBaseURL, c.cfg.ChallengeConsumerKey, nil
	}
	if c.cfg.ConsumerKey == "" {
		return "", "", fmt.Errorf("%w: set ODPT_CONSUMER_KEY", ErrNoConsumerKey)
	}
	return c.cfg.BaseURL, c.cfg.ConsumerKey, nil
}

// Redact hides the consumer key in a request URL so it can be logged
func Redact(u *url.URL) string {
	clone := *u
	q := clone.Query()
	if q.Has(paramConsumerKey) {
		q.Set(paramConsumerKey, "[redacted]")
		clone.RawQuery = q.Encode()
	}
	return clone.String()
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.cfg.InitialInterval > 0 {
		b.InitialInterval = c.cfg.InitialInterval
	}
	b.MaxElapsedTime = c.cfg.MaxElapsedTime
	return backoff.WithContext(backoff.WithMaxRetries(b, c.cfg.MaxRetries), ctx)
}

// fetch runs one query and returns every element of the response array that
// is a JSON object
func (c *Client) fetch(ctx context.Context, endpoint, scopeID string, params url.Values) ([]*structpb.Struct, error) {
	scope := c.ScopeFor(scopeID)
	base, key, err := c.endpoint(scope)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(base + "/" + endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse %s url: %w", scope, err)
	}
	q := url.Values{}
	q.Set(paramConsumerKey, key)
	for k, vs := range params {
		for _, v := range vs {
			if v != "" {
				q.Add(k, v)
			}
		}
	}
	u.RawQuery = q.Encode()

	c.logger.Debug("fetching", "endpoint", endpoint, "scope", scope, "url", Redact(u))

	body, err := backoff.RetryNotifyWithData(
		func() ([]byte, error) {
			return c.get(ctx, endpoint, u)
		},
		c.newBackOff(ctx),
		func(err error, d time.Duration) {
			c.logger.Warn("retrying upstream request", "endpoint", endpoint, "backoff", d, "error", err)
		},
	)
	if err != nil {
		return nil, err
	}

	return decodeList(endpoint, body)
}

func (c *Client) get(ctx context.Context, endpoint string, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(statusErr)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", endpoint, err)
	}
	return body, nil
}

func decodeList(endpoint string, body []byte) ([]*structpb.Struct, error) {
	var list structpb.ListValue
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", endpoint, err)
	}

	records := make([]*structpb.Struct, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		if s := v.GetStructValue(); s != nil {
			records = append(records, s)
		}
	}
	return records, nil
}

// Trains returns the trains currently running on a railway
func (c *Client) Trains(ctx context.Context, railway string) ([]models.Train, error) {
	records, err := c.fetch(ctx, endpointTrain, railway, url.Values{paramRailway: {railway}})
	if err != nil {
		return nil, err
	}

	trains := make([]models.Train, 0, len(records))
	for _, r := range records {
		if t, ok := normalizeTrain(r); ok {
			trains = append(trains, t)
		}
	}
	return trains, nil
}

// Stations returns a railway's stations in upstream order, which is taken
// as the physical track order
func (c *Client) Stations(ctx context.Context, railway string) ([]models.Station, error) {
	records, err := c.fetch(ctx, endpointStation, railway, url.Values{paramRailway: {railway}})
	if err != nil {
		return nil, err
	}

	stations := make([]models.Station, 0, len(records))
	for _, r := range records {
		if s, ok := normalizeStation(r); ok {
			s.SequenceIndex = len(stations)
			stations = append(stations, s)
		}
	}
	return stations, nil
}

// TrainInformation returns the service notices of an operator
func (c *Client) TrainInformation(ctx context.Context, operator string) ([]models.OperationInfo, error) {
	records, err := c.fetch(ctx, endpointTrainInformation, operator, url.Values{paramOperator: {operator}})
	if err != nil {
		return nil, err
	}

	infos := make([]models.OperationInfo, 0, len(records))
	for _, r := range records {
		if info, ok := normalizeInfo(r); ok {
			infos = append(infos, info)
		}
	}
	return infos, nil
}

// Timetables returns up to TimetableLimit train timetables of a railway
func (c *Client) Timetables(ctx context.Context, railway string) ([]models.Timetable, error) {
	records, err := c.fetch(ctx, endpointTrainTimetable, railway, url.Values{paramRailway: {railway}})
	if err != nil {
		return nil, err
	}

	limit := c.cfg.TimetableLimit
	if limit <= 0 {
		limit = len(records)
	}

	timetables := make([]models.Timetable, 0, min(limit, len(records)))
	for _, r := range records {
		if len(timetables) >= limit {
			break
		}
		if tt, ok := normalizeTimetable(r); ok {
			timetables = append(timetables, tt)
		}
	}
	return timetables, nil
}
