// Package photos finds hotel photos through web image search and enriches the
// displayed hotel in the background.
package photos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Veraticus/hotel-scout/internal/model"
	"github.com/go-resty/resty/v2"
	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
)

// Search defaults.
const (
	DefaultBaseURL         = "https://duckduckgo.com"
	DefaultMaxImages       = 50
	DefaultMinWidth        = 600
	DefaultMinHeight       = 400
	DefaultLivenessTimeout = 3 * time.Second

	maxResultPages = 3
)

// ErrNoSearchToken is returned when the search page does not hand out a query token.
var ErrNoSearchToken = errors.New("image search token not found")

var vqdPattern = regexp.MustCompile(`vqd=["']?([0-9A-Za-z_-]+)`)

// Searcher finds photos of a hotel.
type Searcher interface {
	Search(ctx context.Context, hotelName, city string) ([]model.Photo, error)
}

// Config tunes the image searcher.
type Config struct {
	Logger          *slog.Logger
	BaseURL         string
	MaxImages       int
	MinWidth        int
	MinHeight       int
	LivenessTimeout time.Duration
}

// ImageSearcher scrapes DuckDuckGo image results.
type ImageSearcher struct {
	collector *colly.Collector
	liveness  *resty.Client
	logger    *slog.Logger
	baseURL   string
	maxImages int
	minWidth  int
	minHeight int
}

type imageResult struct {
	Image  string `json:"image"`
	Title  string `json:"title"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type imagePage struct {
	Next    string        `json:"next"`
	Results []imageResult `json:"results"`
}

// NewImageSearcher creates a searcher.
func NewImageSearcher(cfg Config) (*ImageSearcher, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid image search url %q", cfg.BaseURL)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.LivenessTimeout
	if timeout <= 0 {
		timeout = DefaultLivenessTimeout
	}

	c := colly.NewCollector(colly.AllowedDomains(base.Hostname()), colly.AllowURLRevisit())
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
	}); err != nil {
		return nil, fmt.Errorf("failed to set limit rule: %w", err)
	}
	c.SetRequestTimeout(10 * time.Second)

	return &ImageSearcher{
		collector: c,
		liveness:  resty.New().SetTimeout(timeout).SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)),
		logger:    logger.With("component", "photos"),
		baseURL:   baseURL,
		maxImages: orDefault(cfg.MaxImages, DefaultMaxImages),
		minWidth:  orDefault(cfg.MinWidth, DefaultMinWidth),
		minHeight: orDefault(cfg.MinHeight, DefaultMinHeight),
	}, nil
}

// newCollector clones the configured collector for one search. Clones do not
// inherit callbacks, so the browser-like headers are registered here.
func (s *ImageSearcher) newCollector(ctx context.Context) *colly.Collector {
	c := s.collector.Clone()
	c.Context = ctx
	extensions.RandomUserAgent(c)
	extensions.Referer(c)
	return c
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Search returns up to MaxImages relevant, reachable photos. No matches is not an error.
func (s *ImageSearcher) Search(ctx context.Context, hotelName, city string) ([]model.Photo, error) {
	query := Query(hotelName, city)
	if query == "" {
		return nil, nil
	}

	collector := s.newCollector(ctx)

	var (
		token    string
		pages    int
		photos   []model.Photo
		seen     = make(map[string]bool)
		fetchErr error
	)

	collector.OnRequest(func(r *colly.Request) {
		s.logger.Debug("Image search request", "url", r.URL.String())
	})

	collector.OnResponse(func(r *colly.Response) {
		if r.Request.URL.Path != "/i.js" {
			if m := vqdPattern.FindSubmatch(r.Body); m != nil {
				token = string(m[1])
			}
			return
		}

		pages++
		var page imagePage
		if err := json.Unmarshal(r.Body, &page); err != nil {
			fetchErr = fmt.Errorf("failed to decode image results: %w", err)
			return
		}
		for _, img := range page.Results {
			if len(photos) >= s.maxImages || ctx.Err() != nil {
				return
			}
			if seen[img.Image] || !s.acceptable(img, hotelName, city) {
				continue
			}
			seen[img.Image] = true
			if !s.alive(ctx, img.Image) {
				continue
			}
			photos = append(photos, model.Photo{URL: img.Image, Title: img.Title})
		}
		if page.Next != "" && len(photos) < s.maxImages && pages < maxResultPages {
			next := page.Next + "&vqd=" + url.QueryEscape(token)
			if err := r.Request.Visit(next); err != nil {
				s.logger.Debug("Stopping image paging", "error", err)
			}
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("image search %s failed with status %d: %w", r.Request.URL.Path, r.StatusCode, err)
	})

	params := url.Values{"q": {query}, "iax": {"images"}, "ia": {"images"}}
	landing := s.baseURL + "/?" + params.Encode()
	if err := collector.Visit(landing); err != nil {
		return nil, fmt.Errorf("image search failed: %w", err)
	}
	collector.Wait()
	if fetchErr != nil {
		return nil, fetchErr
	}
	if token == "" {
		return nil, ErrNoSearchToken
	}

	results := url.Values{"l": {"us-en"}, "o": {"json"}, "q": {query}, "vqd": {token}, "p": {"1"}}
	// The JSON endpoint expects the landing page as referer; later pages get
	// theirs from the Referer extension.
	header := http.Header{"Referer": {landing}}
	if err := collector.Request(http.MethodGet, s.baseURL+"/i.js?"+results.Encode(), nil, nil, header); err != nil {
		return nil, fmt.Errorf("image search failed: %w", err)
	}
	collector.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fetchErr != nil && len(photos) == 0 {
		return nil, fetchErr
	}
	return photos, nil
}

func (s *ImageSearcher) acceptable(img imageResult, hotelName, city string) bool {
	return img.Image != "" &&
		!blocked(img.Image) &&
		img.Width >= s.minWidth &&
		img.Height >= s.minHeight &&
		Relevant(img.Title, hotelName, city)
}

// alive reports whether the image answers a HEAD request with an image content type.
func (s *ImageSearcher) alive(ctx context.Context, imageURL string) bool {
	resp, err := s.liveness.R().SetContext(ctx).Head(imageURL)
	if err != nil {
		return false
	}
	return resp.StatusCode() == http.StatusOK &&
		strings.HasPrefix(resp.Header().Get("Content-Type"), "image/")
}
