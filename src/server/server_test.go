package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"autoexit/src/executors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticStatus executors.Snapshot

func (s staticStatus) Snapshot() executors.Snapshot { return executors.Snapshot(s) }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRoutes(t *testing.T) {
	status := staticStatus{MarketOpen: true, QuotesCached: 3, Cycles: 9}
	h := New(&Config{Port: "0"}, status).Router()

	rec := get(t, h, "/healthcheck")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = get(t, h, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap executors.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.True(t, snap.MarketOpen)
	assert.Equal(t, 3, snap.QuotesCached)
	assert.Equal(t, uint64(9), snap.Cycles)

	rec = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "autoexit_")

	rec = get(t, h, "/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusUnavailable(t *testing.T) {
	h := New(&Config{Port: "0"}, nil).Router()
	rec := get(t, h, "/status")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	srv := httptest.NewServer(New(&Config{Port: "0"}, nil).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthcheck")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "OK", string(body))

	s := New(&Config{Port: "0"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
