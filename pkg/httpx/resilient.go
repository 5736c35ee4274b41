package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Candidate is one URL/parameter variant of an upstream endpoint.
// Marketplace gateways move their live endpoint path over time, so callers
// pass every known shape and the fetcher walks them in order.
type Candidate struct {
	URL    string
	Params url.Values
}

// Attempt records one try against one candidate through one egress path.
type Attempt struct {
	URL    string `json:"url"`
	Egress string `json:"egress"`
	Status int    `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// UpstreamError is returned when every candidate across every egress path
// is exhausted without a 2xx. Attempts carries the full diagnostic trail.
type UpstreamError struct {
	Attempts []Attempt
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream exhausted after %d attempts", len(e.Attempts))
}

// AbortError marks a non-retryable upstream response (a genuine client
// error such as 400/401/404). The fetcher stops immediately instead of
// burning retries on the remaining candidates.
type AbortError struct {
	Status  int
	Body    []byte
	Header  http.Header
	Attempt Attempt
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("upstream rejected request with status %d", e.Status)
}

// Options tune one Fetch call.
type Options struct {
	Headers    http.Header
	ProxyPool  []string      // outbound proxy URLs, tried after direct egress
	MaxRetries int           // extra tries per candidate on defense signatures
	Backoff    time.Duration // linear backoff unit between retries
	Timeout    time.Duration // per-attempt timeout
}

// Result is a successful fetch outcome.
type Result struct {
	Status   int
	Body     []byte
	Header   http.Header
	Attempts []Attempt
}

// defenseStatuses are the gateway/bot-defense codes worth retrying or
// routing around. Any other non-2xx aborts immediately.
var defenseStatuses = map[int]bool{
	403: true, 502: true, 503: true, 504: true,
	520: true, 522: true, 523: true, 524: true, 556: true,
}

// defenseHeaders are reverse-proxy signatures that mark a response as
// bot-defense even when the status alone is ambiguous.
var defenseHeaders = []string{"cf-ray", "x-ddos-protection", "x-sucuri-id"}

const directEgress = "direct"

// Fetcher performs resilient GETs against a set of candidate endpoints,
// optionally through a pool of outbound proxies.
type Fetcher struct {
	timeout time.Duration
}

// NewFetcher constructs a Fetcher with the default per-attempt timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{timeout: timeout}
}

// Get walks egress paths (direct first, then each proxy) and, within each,
// every candidate; each candidate gets up to MaxRetries+1 tries. A 2xx is
// accepted immediately. Only defense-like responses retry or fall through;
// other errors abort with *AbortError. Exhaustion yields *UpstreamError.
func (f *Fetcher) Get(ctx context.Context, candidates []Candidate, opts Options) (*Result, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates to fetch")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = f.timeout
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	egresses := append([]string{directEgress}, opts.ProxyPool...)
	var attempts []Attempt

	for _, egress := range egresses {
		client, err := f.clientFor(egress, timeout)
		if err != nil {
			attempts = append(attempts, Attempt{Egress: egress, Error: err.Error()})
			continue
		}

		for _, cand := range candidates {
			target := cand.URL
			if len(cand.Params) > 0 {
				target = cand.URL + "?" + cand.Params.Encode()
			}

			for try := 0; try <= opts.MaxRetries; try++ {
				if err := ctx.Err(); err != nil {
					return nil, err
				}

				status, body, header, err := f.once(ctx, client, target, opts.Headers)
				att := Attempt{URL: target, Egress: egress, Status: status}
				if err != nil {
					att.Error = err.Error()
				}
				attempts = append(attempts, att)

				switch {
				case err == nil && status >= 200 && status < 300:
					return &Result{Status: status, Body: body, Header: header, Attempts: attempts}, nil
				case err != nil || defenseStatuses[status] || hasDefenseHeader(header):
					log.Debug().Str("url", target).Str("egress", egress).
						Int("status", status).Int("try", try).Msg("upstream defended, retrying")
					if try < opts.MaxRetries {
						sleep(ctx, backoff*time.Duration(try+1))
					}
				default:
					// Genuine client error: do not mask it behind retries.
					return nil, &AbortError{Status: status, Body: body, Header: header, Attempt: att}
				}
			}
		}
	}

	return nil, &UpstreamError{Attempts: attempts}
}

func (f *Fetcher) once(ctx context.Context, client *http.Client, target string, headers http.Header) (int, []byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, nil, err
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return resp.StatusCode, nil, resp.Header, err
	}
	return resp.StatusCode, body, resp.Header, nil
}

func (f *Fetcher) clientFor(egress string, timeout time.Duration) (*http.Client, error) {
	if egress == directEgress {
		return &http.Client{Timeout: timeout}, nil
	}
	proxyURL, err := url.Parse(egress)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url %q: %w", egress, err)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
	}, nil
}

func hasDefenseHeader(h http.Header) bool {
	if h == nil {
		return false
	}
	for _, name := range defenseHeaders {
		if h.Get(name) != "" {
			return true
		}
	}
	server := strings.ToLower(h.Get("Server"))
	return strings.Contains(server, "cloudflare") || strings.Contains(server, "ddos-guard")
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
