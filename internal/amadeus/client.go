// Package amadeus is the travel data provider client: city lookup, hotel discovery,
// offer pricing, and guest sentiments over the Amadeus Self-Service REST API.
package amadeus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/hotel-scout/internal/cache"
	"github.com/Veraticus/hotel-scout/internal/common"
	"github.com/Veraticus/hotel-scout/internal/metrics"
	"github.com/Veraticus/hotel-scout/internal/service"
	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Client defaults.
const (
	DefaultBaseURL   = "https://test.api.amadeus.com"
	DefaultTimeout   = 10 * time.Second
	DefaultLongTTL   = 720 * time.Hour
	DefaultOffersTTL = time.Hour

	tokenPath = "/v1/security/oauth2/token"
)

// Endpoint labels used for caching, retry logs, and metrics.
const (
	EndpointCities       = "cities"
	EndpointHotelsByCity = "hotels_by_city"
	EndpointHotelOffers  = "hotel_offers"
	EndpointSentiments   = "hotel_sentiments"
	EndpointOffer        = "hotel_offer"
)

// Config holds the client configuration.
type Config struct {
	Cache            service.CacheStore
	Logger           *slog.Logger
	ClientID         string
	ClientSecret     string
	BaseURL          string
	Retry            common.RetryPolicy
	Timeout          time.Duration
	LongTTL          time.Duration
	OffersTTL        time.Duration
	PurgeProbability float64
	RateLimit        int
}

// Client calls the provider with client-credentials auth, rate limiting,
// retries for transient failures, and per-endpoint response caching.
type Client struct {
	http       *resty.Client
	limiter    *rateLimiter
	logger     *slog.Logger
	cities     *cache.Policy
	hotels     *cache.Policy
	offers     *cache.Policy
	sentiments *cache.Policy
	retry      common.RetryPolicy
}

var _ service.TravelProvider = (*Client)(nil)

// NewClient creates a provider client. A nil Cache disables response caching.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("amadeus client credentials: %w", common.ErrMissingConfig)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	longTTL := cfg.LongTTL
	if longTTL <= 0 {
		longTTL = DefaultLongTTL
	}
	offersTTL := cfg.OffersTTL
	if offersTTL <= 0 {
		offersTTL = DefaultOffersTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "amadeus")

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = common.DefaultRetryPolicy("amadeus")
	}
	if retry.Logger == nil {
		retry.Logger = logger
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     baseURL + tokenPath,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})

	httpClient := resty.NewWithClient(creds.Client(tokenCtx)).
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/vnd.amadeus+json, application/json")

	return &Client{
		http:       httpClient,
		limiter:    newRateLimiter(cfg.RateLimit),
		logger:     logger,
		retry:      retry,
		cities:     cache.NewPolicy(cfg.Cache, EndpointCities, longTTL, cfg.PurgeProbability, logger),
		hotels:     cache.NewPolicy(cfg.Cache, EndpointHotelsByCity, longTTL, cfg.PurgeProbability, logger),
		offers:     cache.NewPolicy(cfg.Cache, EndpointHotelOffers, offersTTL, cfg.PurgeProbability, logger),
		sentiments: cache.NewPolicy(cfg.Cache, EndpointSentiments, longTTL, cfg.PurgeProbability, logger),
	}, nil
}

// Close releases the rate limiter.
func (c *Client) Close() error {
	c.limiter.Close()
	return nil
}

// get issues one rate-limited GET and decodes a successful body into out.
func (c *Client) get(ctx context.Context, endpoint, path string, params map[string]string, out any) error {
	if err := c.limiter.wait(ctx); err != nil {
		return err
	}

	var apiErr apiErrors
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		SetError(&apiErr).
		Get(path)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(endpoint, "network_error").Inc()
		return requestError(endpoint, err)
	}
	if resp.IsError() {
		pe := statusError(endpoint, resp.StatusCode(), resp.Header(), &apiErr)
		outcome := "permanent_error"
		if pe.Transient {
			outcome = "transient_error"
		}
		metrics.ProviderRequests.WithLabelValues(endpoint, outcome).Inc()
		return pe
	}
	metrics.ProviderRequests.WithLabelValues(endpoint, "ok").Inc()
	return nil
}

// requestError classifies failures without a provider response, including token errors.
func requestError(endpoint string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		pe := statusError(endpoint, retrieveErr.Response.StatusCode, retrieveErr.Response.Header, nil)
		pe.Title = "token request failed"
		pe.Err = err
		return pe
	}
	return transportError(endpoint, err)
}

// fetch performs a cached, retried GET. A nil policy skips the cache.
func fetch[T any](ctx context.Context, c *Client, policy *cache.Policy, endpoint, path string, params map[string]string) (T, error) {
	return cache.Fetch(ctx, policy, params, func(ctx context.Context) (T, error) {
		var out T
		err := c.retry.Named(endpoint).Do(ctx, func(ctx context.Context) error {
			return c.get(ctx, endpoint, path, params, &out)
		})
		return out, err
	})
}
