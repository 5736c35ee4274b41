package trendyol

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/sellergate/sellergate_api/pkg/httpx"
)

// Endpoint roots. Trendyol has moved its gateway over time; both the
// current integration gateway and the legacy sapigw path are tried.
const (
	baseURL       = "https://apigw.trendyol.com/integration/product/sellers"
	legacyBaseURL = "https://api.trendyol.com/sapigw/suppliers"

	categoriesURL       = "https://apigw.trendyol.com/integration/product/product-categories"
	legacyCategoriesURL = "https://api.trendyol.com/sapigw/product-categories"
)

const maxRetries = 3

// Config holds Trendyol API credentials and transport options.
type Config struct {
	APIKey    string
	APISecret string
	SellerID  string
	ProxyPool []string
}

// Client talks to the Trendyol seller API. Authentication is HTTP basic
// over key:secret. Calls are paced at roughly one per second and 429/5xx
// responses are retried a bounded number of times, honoring Retry-After.
type Client struct {
	fetcher *httpx.Fetcher
	config  Config
	limiter *rate.Limiter
}

// NewClient constructs a Trendyol client.
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

// ListProducts returns one page of the seller's products. An empty page is
// a valid terminal signal, never an error.
func (c *Client) ListProducts(ctx context.Context, page, size int) (*ProductPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("size", strconv.Itoa(size))

	body, err := c.get(ctx, c.productCandidates("/products", params))
	if err != nil {
		return nil, err
	}

	var result ProductPage
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode products page: %w", err)
	}
	return &result, nil
}

// GetProduct looks a product up by barcode. Returns nil when the barcode
// is unknown to the marketplace.
func (c *Client) GetProduct(ctx context.Context, barcode string) (*Product, error) {
	params := url.Values{}
	params.Set("barcode", barcode)
	params.Set("page", "0")
	params.Set("size", "1")

	body, err := c.get(ctx, c.productCandidates("/products", params))
	if err != nil {
		return nil, err
	}

	var result ProductPage
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode product lookup: %w", err)
	}
	if len(result.Content) == 0 {
		return nil, nil
	}
	return &result.Content[0], nil
}

// ListCategories fetches the full category tree. The body is returned raw
// because the response shape varies by gateway version and is normalized
// by the caller.
func (c *Client) ListCategories(ctx context.Context) (json.RawMessage, error) {
	candidates := []httpx.Candidate{
		{URL: categoriesURL},
		{URL: legacyCategoriesURL},
	}
	return c.get(ctx, candidates)
}

// ListCategoryAttributes fetches attribute definitions for a category,
// trying the path-parameter form on both gateways and a query-parameter
// form with both seller-id spellings. The attempt log is returned even on
// success so callers can report which endpoint shape answered.
func (c *Client) ListCategoryAttributes(ctx context.Context, categoryID int) (json.RawMessage, []httpx.Attempt, error) {
	id := strconv.Itoa(categoryID)

	bySeller := url.Values{}
	bySeller.Set("categoryId", id)
	bySeller.Set("sellerId", c.config.SellerID)

	bySupplier := url.Values{}
	bySupplier.Set("categoryId", id)
	bySupplier.Set("supplierId", c.config.SellerID)

	candidates := []httpx.Candidate{
		{URL: categoriesURL + "/" + id + "/attributes"},
		{URL: legacyCategoriesURL + "/" + id + "/attributes"},
		{URL: categoriesURL + "/attributes", Params: bySeller},
		{URL: legacyCategoriesURL + "/attributes", Params: bySupplier},
	}

	res, err := c.getResult(ctx, candidates)
	if err != nil {
		return nil, attemptsOf(err), err
	}
	return res.Body, res.Attempts, nil
}

// Ping verifies credentials with the cheapest authenticated call.
func (c *Client) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("page", "0")
	params.Set("size", "1")
	_, err := c.get(ctx, c.productCandidates("/products", params))
	return err
}

func (c *Client) productCandidates(path string, params url.Values) []httpx.Candidate {
	return []httpx.Candidate{
		{URL: baseURL + "/" + c.config.SellerID + path, Params: params},
		{URL: legacyBaseURL + "/" + c.config.SellerID + path, Params: params},
	}
}

// get performs a rate-limited resilient GET with bounded retries on
// 429/5xx responses the fetcher classifies as non-defensive.
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
		if errors.As(err, &abort) && (abort.Status == http.StatusTooManyRequests || abort.Status >= 500) {
			delay := retryAfter(abort.Header)
			if delay <= 0 {
				delay = time.Duration(attempt) * time.Second
			}
			log.Warn().Int("status", abort.Status).Dur("delay", delay).
				Int("attempt", attempt).Msg("[TRENDYOL] throttled, backing off")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (c *Client) authHeader() http.Header {
	token := base64.StdEncoding.EncodeToString([]byte(c.config.APIKey + ":" + c.config.APISecret))
	h := http.Header{}
	h.Set("Authorization", "Basic "+token)
	h.Set("User-Agent", c.config.SellerID+" - SelfIntegration")
	h.Set("Accept", "application/json")
	return h
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
