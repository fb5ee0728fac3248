package upstream

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

	"github.com/i474232898/noise-dashboard/internal/noise"
)

var fastBackoff = BackoffConfig{
	MaxRetries:      2,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

func TestClientLatestPositions(t *testing.T) {
	queries := make(chan url.Values, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/reports", r.URL.Path)
		queries <- r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"report_id": 1, "microcontroller_id": 2, "avg_db": 55.5, "min_db": 50, "max_db": 61,
			 "latitude": -3.78, "longitude": -38.55, "timestamp": "2025-03-01T09:00:00"},
			{"report_id": 2, "microcontroller_id": 3, "avg_db": null, "timestamp": "2025-03-01T09:05:00"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, fastBackoff)
	ms, err := c.LatestPositions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "true", (<-queries).Get("latest_positions"))
	require.Len(t, ms, 2)
	assert.Equal(t, 2, ms[0].SensorID)
	assert.True(t, ms[0].HasPosition())
	assert.Zero(t, ms[1].AvgDB)
	assert.False(t, ms[1].HasPosition())
}

func TestClientHistoryQuery(t *testing.T) {
	queries := make(chan url.Values, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.Query()
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, fastBackoff)

	_, err := c.History(context.Background(), noise.HistoryQuery{SensorID: 7})
	require.NoError(t, err)
	gotQuery := <-queries
	assert.Equal(t, "7", gotQuery.Get("microcontroller_id"))
	assert.False(t, gotQuery.Has("start_date"))
	assert.False(t, gotQuery.Has("end_date"))
	assert.False(t, gotQuery.Has("limit"))

	_, err = c.History(context.Background(), noise.HistoryQuery{
		SensorID:  7,
		StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		Limit:     500,
	})
	require.NoError(t, err)
	gotQuery = <-queries
	assert.Equal(t, "2025-03-01", gotQuery.Get("start_date"))
	assert.Equal(t, "2025-03-02", gotQuery.Get("end_date"))
	assert.Equal(t, "500", gotQuery.Get("limit"))
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"microcontroller_id": 1}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, fastBackoff)
	ms, err := c.History(context.Background(), noise.HistoryQuery{SensorID: 1})
	require.NoError(t, err)
	assert.Len(t, ms, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientNetworkFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, fastBackoff)
	_, err := c.LatestPositions(context.Background())
	require.ErrorIs(t, err, noise.ErrNetworkFailure)
	// 4xx is not retried
	assert.Equal(t, int32(1), calls.Load())

	srv.Close()
	_, err = c.History(context.Background(), noise.HistoryQuery{SensorID: 1})
	require.ErrorIs(t, err, noise.ErrNetworkFailure)
}

func TestClientMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"detail": "nope"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, fastBackoff)
	_, err := c.LatestPositions(context.Background())
	require.ErrorIs(t, err, noise.ErrMalformedPayload)

	_, err = c.Logs(context.Background(), 10)
	require.ErrorIs(t, err, noise.ErrMalformedPayload)
}

func TestClientLogs(t *testing.T) {
	limits := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/logs", r.URL.Path)
		limits <- r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`[{"id": 9, "level": "ALERTA", "message": "Ruido acima do limite", "timestamp": "2025-03-01T10:00:00"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, fastBackoff)
	entries, err := c.Logs(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, "100", <-limits)
	require.Len(t, entries, 1)
	assert.Equal(t, noise.SeverityAlert, entries[0].Severity())
}

func TestClientCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, time.Second, fastBackoff)
	_, err := c.History(ctx, noise.HistoryQuery{SensorID: 1})
	require.ErrorIs(t, err, noise.ErrNetworkFailure)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDelay(t *testing.T) {
	b := BackoffConfig{InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second}
	assert.Equal(t, 100*time.Millisecond, b.Delay(0))
	assert.Equal(t, 400*time.Millisecond, b.Delay(2))
	assert.Equal(t, time.Second, b.Delay(10))
}
