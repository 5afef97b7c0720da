package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundseg/internal/config"
	"groundseg/internal/logger"
	"groundseg/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, maxRetry int) (*Client, *int32) {
	t.Helper()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(config.CatalogConfig{
		URL:              srv.URL,
		Mode:             "NOMINAL",
		AuxProductFamily: "S2_AUX",
		Timeout:          time.Second,
		MaxRetry:         maxRetry,
		RetryDelay:       time.Millisecond,
	}, logger.NopLogger())
	require.NoError(t, err)
	return c, &calls
}

func TestRetrieveLatestAuxData(t *testing.T) {
	from := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	to := from.Add(time.Hour)

	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metadata/S2_AUX/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "AUX_UT1UTC", q.Get("productType"))
		assert.Equal(t, "NOMINAL", q.Get("mode"))
		assert.Equal(t, "S2B", q.Get("satellite"))
		assert.Equal(t, "2023-01-02T03:04:05.000000Z", q.Get("t0"))
		assert.Equal(t, "2023-01-02T04:04:05.000000Z", q.Get("t1"))
		assert.Equal(t, "B01", q.Get("bandIndexId"))
		_, _ = w.Write([]byte(`[{"productName":"first","keyObjectStorage":"k1"},{"productName":"second"}]`))
	}, 2)

	data, err := c.RetrieveLatestAuxData(context.Background(), "AUX_UT1UTC", "S2B", from, to, "B01")

	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, "first", data.ProductName)
	assert.Equal(t, "k1", data.KeyObjectStorage)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestRetrieveLatestAuxData_NoBandIndex(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["bandIndexId"]
		assert.False(t, present)
		_, _ = w.Write([]byte(`[]`))
	}, 0)

	data, err := c.RetrieveLatestAuxData(context.Background(), "AUX_UT1UTC", "S2B", time.Now(), time.Now(), "  ")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestRetrieveSessionData(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		count int
	}{
		{"two entries", `[{"sessionId":"DCS_05_S2B","channelId":1},{"sessionId":"DCS_05_S2B","channelId":2}]`, 2},
		{"empty array", `[]`, 0},
		{"empty body", ``, 0},
		{"null", `null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/edrsSession/sessionId/DCS_05_S2B", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			}, 0)

			data, err := c.RetrieveSessionData(context.Background(), "DCS_05_S2B")
			require.NoError(t, err)
			require.NotNil(t, data)
			assert.Len(t, data, tt.count)
		})
	}
}

func TestQuery_ErrorsAfterRetryBudget(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   string
	}{
		{"client error", http.StatusNotFound, "", errors.ErrCatalogClient.Code},
		{"server error", http.StatusServiceUnavailable, "", errors.ErrCatalogServer.Code},
		{"bad json", http.StatusOK, "{not json", errors.ErrCatalogQuery.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, 3)

			_, err := c.RetrieveSessionData(context.Background(), "S1")

			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code))
			assert.True(t, errors.IsCatalogError(err))
			assert.Equal(t, int32(4), atomic.LoadInt32(calls))
		})
	}
}

func TestQuery_RecoversWithinBudget(t *testing.T) {
	var n int32
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"productName":"ok"}]`))
	}, 2)

	data, err := c.RetrieveLatestAuxData(context.Background(), "AUX_ECMWFD", "S2A", time.Now(), time.Now(), "")
	require.NoError(t, err)
	assert.Equal(t, "ok", data.ProductName)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestQuery_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c, err := NewClient(config.CatalogConfig{
		URL:        srv.URL,
		Timeout:    20 * time.Millisecond,
		MaxRetry:   1,
		RetryDelay: time.Millisecond,
	}, logger.NopLogger())
	require.NoError(t, err)

	_, err = c.RetrieveSessionData(context.Background(), "S1")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCatalogQuery.Code))
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(config.CatalogConfig{URL: "not a url"}, logger.NopLogger())
	assert.Error(t, err)
}

func TestNewClient_CopiesHTTPClient(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}

	c, err := NewClient(config.CatalogConfig{URL: "http://catalog:8080", Timeout: 5 * time.Second},
		logger.NopLogger(), WithHTTPClient(shared))
	require.NoError(t, err)

	assert.Equal(t, time.Minute, shared.Timeout)
	assert.Equal(t, 5*time.Second, c.http.Timeout)
	assert.NotSame(t, shared, c.http)
}
