package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCachedEstimator(t *testing.T, srvURL string, ttl time.Duration) (*Estimator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewEstimator(newTestClient(srvURL), rdb, ttl), mr
}

func destinationsHandler(calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`<response><error>false</error><destinations>
			<destination><id>101</id><name>Berlin</name></destination>
		</destinations></response>`))
	}
}

func TestSearchSkipsShortQueries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(destinationsHandler(&calls))
	defer srv.Close()

	e := NewEstimator(newTestClient(srv.URL), nil, time.Minute)

	for _, q := range []string{"", " ", "b", " b "} {
		out, err := e.SearchDestinations(context.Background(), "68", q)
		require.NoError(t, err)
		assert.Empty(t, out)
	}
	assert.Zero(t, calls.Load(), "short queries never reach the carrier")
}

func TestSearchCachesResults(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(destinationsHandler(&calls))
	defer srv.Close()

	e, _ := newCachedEstimator(t, srv.URL, time.Minute)
	ctx := context.Background()

	first, err := e.SearchDestinations(ctx, "68", "Berlin")
	require.NoError(t, err)
	require.Len(t, first, 1)

	// same query modulo case and padding hits the cache
	second, err := e.SearchDestinations(ctx, "68", "  berlin ")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearchCacheExpires(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(destinationsHandler(&calls))
	defer srv.Close()

	e, mr := newCachedEstimator(t, srv.URL, time.Minute)
	ctx := context.Background()

	_, err := e.SearchDestinations(ctx, "68", "berlin")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = e.SearchDestinations(ctx, "68", "berlin")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearchCacheIsBestEffort(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(destinationsHandler(&calls))
	defer srv.Close()

	e, mr := newCachedEstimator(t, srv.URL, time.Minute)
	mr.Close() // cache down, search still works

	out, err := e.SearchDestinations(context.Background(), "68", "berlin")
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearchDistinctOriginsCachedSeparately(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(destinationsHandler(&calls))
	defer srv.Close()

	e, _ := newCachedEstimator(t, srv.URL, time.Minute)
	ctx := context.Background()

	_, err := e.SearchDestinations(ctx, "68", "berlin")
	require.NoError(t, err)
	_, err = e.SearchDestinations(ctx, "99", "berlin")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
