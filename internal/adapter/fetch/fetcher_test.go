package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = "date,state,positiveIncrease\n20200301,PA,1\n"

func newTestFetcher(t *testing.T, url string, clock clockwork.Clock) (*Fetcher, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	f := New(Options{
		CacheRoot:      t.TempDir(),
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Clock:          clock,
	}, map[string]string{"covidtracking": url}, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics)
	return f, metrics
}

func testClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Date(2020, time.July, 4, 13, 25, 0, 0, time.UTC))
}

func TestFetchCSV_DownloadsAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Write([]byte(payload)) //nolint:errcheck // test server
	}))
	defer srv.Close()

	f, metrics := newTestFetcher(t, srv.URL, testClock())

	data, err := f.FetchCSV(context.Background(), "covidtracking", "daily")
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))

	data, err = f.FetchCSV(context.Background(), "covidtracking", "daily")
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))

	assert.Equal(t, int32(1), calls.Load(), "second call should be served from disk")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.FetchCache.WithLabelValues("covidtracking", "hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.FetchCache.WithLabelValues("covidtracking", "miss")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.FetchRequests.WithLabelValues("covidtracking", "success")), 0)
}

func TestFetchCSV_CachePathIsHourly(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Write([]byte(payload)) //nolint:errcheck // test server
	}))
	defer srv.Close()

	clock := testClock()
	f, _ := newTestFetcher(t, srv.URL, clock)

	path := f.CachePath("covidtracking", "daily")
	assert.Equal(t, filepath.Join(f.opts.CacheRoot, "covidtracking", "daily", "2020-07-04:13.csv"), path)

	_, err := f.FetchCSV(context.Background(), "covidtracking", "daily")
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err, "payload should be cached under the current hour")

	clock.Advance(time.Hour)
	_, err = f.FetchCSV(context.Background(), "covidtracking", "daily")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "a new hour should trigger a fresh download")
	assert.Equal(t, filepath.Join(f.opts.CacheRoot, "covidtracking", "daily", "2020-07-04:14.csv"), f.CachePath("covidtracking", "daily"))
}

func TestFetchCSV_KeyPlaceholder(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(payload)) //nolint:errcheck // test server
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, srv.URL+"/states/{key}/daily.csv", testClock())

	_, err := f.FetchCSV(context.Background(), "covidtracking", "pa")
	require.NoError(t, err)
	assert.Equal(t, "/states/pa/daily.csv", gotPath)
}

func TestFetchCSV_RetriesTemporaryFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(payload)) //nolint:errcheck // test server
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, srv.URL, testClock())

	data, err := f.FetchCSV(context.Background(), "covidtracking", "daily")
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchCSV_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f, metrics := newTestFetcher(t, srv.URL, testClock())

	_, err := f.FetchCSV(context.Background(), "covidtracking", "daily")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Equal(t, int32(3), calls.Load(), "one attempt plus two retries")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.FetchRequests.WithLabelValues("covidtracking", "error")), 0)
}

func TestFetchCSV_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "no such file", http.StatusNotFound)
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, srv.URL, testClock())

	_, err := f.FetchCSV(context.Background(), "covidtracking", "daily")
	require.Error(t, err)

	var fe *domain.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, "no such file", fe.Body)
	assert.Equal(t, "covidtracking", fe.Provider)
	assert.Equal(t, int32(1), calls.Load())

	_, statErr := os.Stat(f.CachePath("covidtracking", "daily"))
	assert.True(t, os.IsNotExist(statErr), "failed downloads are not cached")
}

func TestFetchCSV_UnknownProvider(t *testing.T) {
	f, _ := newTestFetcher(t, "http://unused.invalid", testClock())

	_, err := f.FetchCSV(context.Background(), "jhu", "daily")
	assert.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.ErrorIs(t, err, errUnknownProvider)
}

func TestFetchCSV_InvalidKey(t *testing.T) {
	f, _ := newTestFetcher(t, "http://unused.invalid", testClock())

	for _, key := range []string{"", "../escape", "a/b", ".hidden"} {
		_, err := f.FetchCSV(context.Background(), "covidtracking", key)
		assert.ErrorIs(t, err, errInvalidKey, "key %q", key)
	}
}

func TestFetchCSV_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, srv.URL, testClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.FetchCSV(ctx, "covidtracking", "daily")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, domain.ErrFetchFailed)
}
