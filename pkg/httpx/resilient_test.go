package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFetcher() *Fetcher {
	return NewFetcher(5 * time.Second)
}

func TestGetAcceptsFirstSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	params := url.Values{}
	params.Set("page", "1")
	res, err := testFetcher().Get(context.Background(), []Candidate{{URL: srv.URL, Params: params}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)
	assert.JSONEq(t, `{"ok":true}`, string(res.Body))
	assert.Len(t, res.Attempts, 1)
}

func TestGetRetriesDefenseStatusThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	res, err := testFetcher().Get(context.Background(), []Candidate{{URL: srv.URL}}, Options{
		MaxRetries: 3,
		Backoff:    time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Len(t, res.Attempts, 3)
}

func TestGetFallsThroughToNextCandidate(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`ok`))
	}))
	defer good.Close()

	res, err := testFetcher().Get(context.Background(),
		[]Candidate{{URL: bad.URL}, {URL: good.URL}},
		Options{MaxRetries: 1, Backoff: time.Millisecond})
	require.NoError(t, err)
	// 2 tries on the defended candidate, 1 on the healthy one.
	assert.Len(t, res.Attempts, 3)
	assert.Equal(t, good.URL, res.Attempts[2].URL)
}

func TestGetAbortsOnGenuineClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testFetcher().Get(context.Background(),
		[]Candidate{{URL: srv.URL}, {URL: srv.URL + "/other"}},
		Options{MaxRetries: 5, Backoff: time.Millisecond})
	require.Error(t, err)

	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, 404, abort.Status)
	// No retries and no fall-through for a plain 404.
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetExhaustionCarriesAttemptLog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testFetcher().Get(context.Background(),
		[]Candidate{{URL: srv.URL}},
		Options{MaxRetries: 1, Backoff: time.Millisecond})
	require.Error(t, err)

	var up *UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Len(t, up.Attempts, 2)
	for _, att := range up.Attempts {
		assert.Equal(t, 403, att.Status)
		assert.Equal(t, "direct", att.Egress)
	}
}

func TestGetHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testFetcher().Get(ctx, []Candidate{{URL: srv.URL}}, Options{MaxRetries: 2})
	assert.ErrorIs(t, err, context.Canceled)
}
