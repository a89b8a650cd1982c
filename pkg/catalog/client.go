// Package catalog looks books up in Open Library and fills catalog metadata
// for newly added books.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"library_catalog/pkg/circuitbreaker"
	"library_catalog/pkg/metrics"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://openlibrary.org"
	DefaultCoversURL = "https://covers.openlibrary.org"
	DefaultTimeout   = 5 * time.Second
	cacheTTL         = 24 * time.Hour
	notFoundTTL      = time.Hour
)

var ErrUnavailable = errors.New("catalog service unavailable")

type Client struct {
	baseURL    string
	coversURL  string
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	cache      Cache
	log        *logrus.Entry
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithCoversURL(u string) Option {
	return func(c *Client) { c.coversURL = strings.TrimRight(u, "/") }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRateLimit caps outgoing requests at rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

func WithCache(cache Cache) Option {
	return func(c *Client) { c.cache = cache }
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		coversURL:  DefaultCoversURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		timeout:    DefaultTimeout,
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		breaker:    circuitbreaker.NewCircuitBreaker(5, 30*time.Second),
		log:        logrus.WithField("component", "catalog"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CoverURL returns the cover image URL of isbn in size S, M or L.
func (c *Client) CoverURL(isbn, size string) string {
	return fmt.Sprintf("%s/b/isbn/%s-%s.jpg", c.coversURL, isbn, size)
}

// LookupByISBN returns the edition metadata for isbn, or nil when Open Library
// has no record of it.
func (c *Client) LookupByISBN(ctx context.Context, isbn string) (*Metadata, error) {
	isbn = cleanISBN(isbn)
	start := time.Now()
	key := "isbn:" + isbn

	if md, ok := c.cached(ctx, key); ok {
		metrics.ObserveLookup("cache_hit", time.Since(start))
		return md, nil
	}

	var md *Metadata
	err := c.call(ctx, func(ctx context.Context) error {
		q := url.Values{}
		q.Set("bibkeys", "ISBN:"+isbn)
		q.Set("jscmd", "details")
		q.Set("format", "json")
		var body map[string]struct {
			Details editionDetails `json:"details"`
		}
		if err := c.getJSON(ctx, "/api/books?"+q.Encode(), &body); err != nil {
			return err
		}
		if entry, ok := body["ISBN:"+isbn]; ok {
			md = entry.Details.metadata(isbn, c.CoverURL)
		}
		return nil
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, circuitbreaker.ErrOpen) {
			outcome = "breaker_open"
		}
		metrics.ObserveLookup(outcome, time.Since(start))
		c.log.WithError(err).WithField("isbn", isbn).Warn("open library lookup failed")
		return nil, err
	}

	if md == nil {
		metrics.ObserveLookup("not_found", time.Since(start))
		c.store(ctx, key, nil, notFoundTTL)
		return nil, nil
	}
	metrics.ObserveLookup("found", time.Since(start))
	c.store(ctx, key, md, cacheTTL)
	return md, nil
}

// Search runs a free-text title or author search.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var results []SearchResult
	err := c.call(ctx, func(ctx context.Context) error {
		q := url.Values{}
		q.Set("q", query)
		q.Set("limit", strconv.Itoa(limit))
		var body struct {
			Docs []searchDoc `json:"docs"`
		}
		if err := c.getJSON(ctx, "/search.json?"+q.Encode(), &body); err != nil {
			return err
		}
		results = make([]SearchResult, 0, len(body.Docs))
		for _, d := range body.Docs {
			r := SearchResult{
				Title:       d.Title,
				Authors:     d.AuthorName,
				PublishYear: d.FirstPublishYear,
				PageCount:   d.NumberOfPagesMedian,
			}
			if r.Title == "" {
				r.Title = "Unknown Title"
			}
			if len(r.Authors) == 0 {
				r.Authors = []string{"Unknown Author"}
			}
			if len(d.ISBN) > 0 {
				r.ISBN = d.ISBN[0]
			}
			if len(d.Publisher) > 0 {
				r.Publisher = d.Publisher[0]
			}
			if d.CoverI != 0 {
				r.CoverURL = fmt.Sprintf("%s/b/id/%d-M.jpg", c.coversURL, d.CoverI)
			}
			results = append(results, r)
		}
		return nil
	})
	if err != nil {
		c.log.WithError(err).WithField("query", query).Warn("open library search failed")
		return nil, err
	}
	return results, nil
}

// CoverExists reports whether Open Library serves a cover for isbn in size.
func (c *Client) CoverExists(ctx context.Context, isbn, size string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.CoverURL(cleanISBN(isbn), size)+"?default=false", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// call runs fn under the rate limiter, the circuit breaker and the lookup time
// bound. Failures caused by the caller cancelling ctx are reported with
// context.Canceled so the breaker does not count them.
func (c *Client) call(parent context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit: %v", ErrUnavailable, err)
	}
	return c.breaker.Execute(func() error {
		err := fn(ctx)
		if err != nil && errors.Is(parent.Err(), context.Canceled) && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %w", err, context.Canceled)
		}
		return err
	}, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: open library returned %d", ErrUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode open library response: %w", err)
	}
	return nil
}

// cached reports a hit for both stored metadata and a remembered miss (md == nil).
func (c *Client) cached(ctx context.Context, key string) (*Metadata, bool) {
	if c.cache == nil {
		return nil, false
	}
	b, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.log.WithError(err).Debug("catalog cache read failed")
		}
		return nil, false
	}
	var md *Metadata
	if err := json.Unmarshal(b, &md); err != nil {
		return nil, false
	}
	return md, true
}

func (c *Client) store(ctx context.Context, key string, md *Metadata, ttl time.Duration) {
	if c.cache == nil {
		return
	}
	b, err := json.Marshal(md)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, b, ttl); err != nil {
		c.log.WithError(err).Debug("catalog cache write failed")
	}
}

func cleanISBN(isbn string) string {
	return strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(isbn)))
}
