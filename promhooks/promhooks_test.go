package promhooks_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/lendguard"
	"github.com/byte4ever/lendguard/memstore"
	"github.com/byte4ever/lendguard/promhooks"
)

func scripted(statuses ...int) lendguard.Transport {
	i := 0

	return lendguard.TransportFunc(func(context.Context, *lendguard.Request) (*lendguard.Response, error) {
		s := statuses[min(i, len(statuses)-1)]
		i++

		return &lendguard.Response{StatusCode: s, Body: []byte(`{}`)}, nil
	})
}

func newClient(t *testing.T, m *promhooks.Metrics, tr lendguard.Transport) *lendguard.Client {
	t.Helper()

	return lendguard.NewClient(tr,
		lendguard.NewCredentialStore(memstore.New(), memstore.New()),
		lendguard.WithHooks(m.Hooks()),
		lendguard.WithNotifier(&lendguard.Inbox{}),
		lendguard.WithRetryPolicy(lendguard.NewRetryPolicy(
			lendguard.WithRule(lendguard.RateLimited, 3, lendguard.ConstantBackoff(0)),
			lendguard.WithRule(lendguard.ServerFault5xx, 2, lendguard.ConstantBackoff(0)),
		)),
	)
}

func TestRetriesAndSuccessAreCounted(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := promhooks.New("test", reg)
	require.NoError(t, err)

	c := newClient(t, m, scripted(
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusOK,
	))

	_, err = c.Get(context.Background(), "/loans")
	require.NoError(t, err)

	require.InDelta(t, 2, testutil.ToFloat64(m.Retries(lendguard.RateLimited)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.Requests(http.MethodGet, promhooks.OutcomeSuccess)), 0)
}

func TestExhaustionIsCountedAsNotification(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := promhooks.New("test", reg)
	require.NoError(t, err)

	c := newClient(t, m, scripted(http.StatusServiceUnavailable))

	_, err = c.Get(context.Background(), "/loans")
	require.ErrorIs(t, err, lendguard.ErrRetriesExhausted)

	require.InDelta(t, 2, testutil.ToFloat64(m.Retries(lendguard.ServerFault5xx)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.Notifications(lendguard.ServerFault5xx)), 0)
	require.InDelta(t, 1,
		testutil.ToFloat64(m.Requests(http.MethodGet, lendguard.ServerFault5xx.String())), 0)
}

func TestNewIsIdempotentPerRegistry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()

	first, err := promhooks.New("test", reg)
	require.NoError(t, err)

	second, err := promhooks.New("test", reg)
	require.NoError(t, err)

	second.Hooks().OnCacheHit("GET /loans")

	require.InDelta(t, 1, testutil.ToFloat64(first.CacheHits()), 0)
}
