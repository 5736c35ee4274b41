package hepsiburada

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/sellergate/sellergate_api/pkg/httpx"
)

const (
	listingBaseURL = "https://listing-external.hepsiburada.com/listings/merchantid"
	catalogBaseURL = "https://mpop.hepsiburada.com/product/api/categories"
)

const maxRetries = 3

// Config holds Hepsiburada API credentials and transport options.
type Config struct {
	MerchantID string
	APIKey     string // merchant username for basic auth fallback
	APISecret  string // token for bearer auth, password for basic auth
	ProxyPool  []string
}

// Client talks to the Hepsiburada merchant API. It authenticates with a
// bearer token and falls back to basic auth once the gateway rejects the
// token form; the working scheme is remembered for subsequent calls.
type Client struct {
	fetcher *httpx.Fetcher
	config  Config
	limiter *rate.Limiter

	mu       sync.Mutex
	useBasic bool
}

// NewClient constructs a Hepsiburada client.
func NewClient(cfg Config, fetcher *httpx.Fetcher) *Client {
	if fetcher == nil {
		fetcher = httpx.NewFetcher(30 * time.Second)
	}
	return &Client{
		fetcher: fetcher,
		config:  cfg,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// ListListings returns one page of the merchant's listings. An empty page
// is a valid terminal signal, never an error.
func (c *Client) ListListings(ctx context.Context, offset, limit int) (*ListingPage, error) {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, []httpx.Candidate{
		{URL: listingBaseURL + "/" + c.config.MerchantID, Params: params},
	})
	if err != nil {
		return nil, err
	}

	var page ListingPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode listings page: %w", err)
	}
	if page.Limit == 0 {
		page.Offset, page.Limit = offset, limit
	}
	return &page, nil
}

// GetListing looks a listing up by merchant SKU. Returns nil when the SKU
// is unknown to the marketplace.
func (c *Client) GetListing(ctx context.Context, merchantSKU string) (*Listing, error) {
	params := url.Values{}
	params.Set("merchantSku", merchantSKU)
	params.Set("offset", "0")
	params.Set("limit", "1")

	body, err := c.get(ctx, []httpx.Candidate{
		{URL: listingBaseURL + "/" + c.config.MerchantID, Params: params},
	})
	if err != nil {
		return nil, err
	}

	var page ListingPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode listing lookup: %w", err)
	}
	if len(page.Listings) == 0 {
		return nil, nil
	}
	return &page.Listings[0], nil
}

// ListCategories fetches the category list raw. Hepsiburada pages its
// categories; both the paged and the get-all shapes are tried.
func (c *Client) ListCategories(ctx context.Context) (json.RawMessage, error) {
	all := url.Values{}
	all.Set("leaf", "false")
	all.Set("available", "true")

	return c.get(ctx, []httpx.Candidate{
		{URL: catalogBaseURL + "/get-all-categories", Params: all},
		{URL: catalogBaseURL},
	})
}

// ListCategoryAttributes fetches attribute definitions for a category,
// trying the path form and the query form with both merchant spellings.
// The attempt log is returned even on success so callers can report which
// endpoint shape answered.
func (c *Client) ListCategoryAttributes(ctx context.Context, categoryID int) (json.RawMessage, []httpx.Attempt, error) {
	id := strconv.Itoa(categoryID)

	byMerchant := url.Values{}
	byMerchant.Set("categoryId", id)
	byMerchant.Set("merchantId", c.config.MerchantID)

	byMerchantID := url.Values{}
	byMerchantID.Set("categoryId", id)
	byMerchantID.Set("merchantid", c.config.MerchantID)

	res, err := c.getResult(ctx, []httpx.Candidate{
		{URL: catalogBaseURL + "/" + id + "/attributes"},
		{URL: catalogBaseURL + "/attributes", Params: byMerchant},
		{URL: catalogBaseURL + "/attributes", Params: byMerchantID},
	})
	if err != nil {
		return nil, attemptsOf(err), err
	}
	return res.Body, res.Attempts, nil
}

// Ping verifies credentials with the cheapest authenticated call.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListListings(ctx, 0, 1)
	return err
}

// get performs a rate-limited resilient GET with bounded retries on
// 429/5xx responses and a one-time bearer-to-basic auth downgrade on 401.
func (c *Client) get(ctx context.Context, candidates []httpx.Candidate) (json.RawMessage, error) {
	res, err := c.getResult(ctx, candidates)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (c *Client) getResult(ctx context.Context, candidates []httpx.Candidate) (*httpx.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		res, err := c.fetcher.Get(ctx, candidates, httpx.Options{
			Headers:    c.authHeader(),
			ProxyPool:  c.config.ProxyPool,
			MaxRetries: 2,
		})
		if err == nil {
			return res, nil
		}
		lastErr = err

		var abort *httpx.AbortError
		if !errors.As(err, &abort) {
			return nil, err
		}

		switch {
		case abort.Status == http.StatusUnauthorized && !c.basicAuth():
			// Older gateway deployments only accept basic auth.
			c.setBasicAuth()
			log.Warn().Msg("[HEPSIBURADA] bearer auth rejected, retrying with basic auth")
		case abort.Status == http.StatusTooManyRequests || abort.Status >= 500:
			delay := retryAfter(abort.Header)
			if delay <= 0 {
				delay = time.Duration(attempt) * time.Second
			}
			log.Warn().Int("status", abort.Status).Dur("delay", delay).
				Int("attempt", attempt).Msg("[HEPSIBURADA] throttled, backing off")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		default:
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) authHeader() http.Header {
	h := http.Header{}
	if c.basicAuth() {
		token := base64.StdEncoding.EncodeToString([]byte(c.config.APIKey + ":" + c.config.APISecret))
		h.Set("Authorization", "Basic "+token)
	} else {
		h.Set("Authorization", "Bearer "+c.config.APISecret)
	}
	h.Set("User-Agent", c.config.MerchantID)
	h.Set("Accept", "application/json")
	return h
}

func (c *Client) basicAuth() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.useBasic
}

func (c *Client) setBasicAuth() {
	c.mu.Lock()
	c.useBasic = true
	c.mu.Unlock()
}

func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// attemptsOf extracts the diagnostic attempt log from fetcher errors.
func attemptsOf(err error) []httpx.Attempt {
	var up *httpx.UpstreamError
	if errors.As(err, &up) {
		return up.Attempts
	}
	var abort *httpx.AbortError
	if errors.As(err, &abort) {
		return []httpx.Attempt{abort.Attempt}
	}
	return nil
}
