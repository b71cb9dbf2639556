package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(maxRetries int) *Fetcher {
	f := NewFetcher(maxRetries, time.Millisecond)
	return f
}

func TestDevicesURL(t *testing.T) {
	got := DevicesURL("http://api.example.com/Service.svc", "tok123")
	assert.Equal(t, "http://api.example.com/Service.svc/GetDevices/tok123", got)
}

func TestMessagesURLEmbedsDayWindow(t *testing.T) {
	day := time.Date(2021, 2, 25, 0, 0, 0, 0, time.UTC)
	got := MessagesURL("http://api.example.com/Service.svc", "tok123", day)
	assert.Equal(t,
		"http://api.example.com/Service.svc/GetMessages/tok123/2021-02-25T00:00:00/2021-02-25T23:59:59",
		got)
}

func TestFetchReturnsPayloadAndSendsAcceptHeader(t *testing.T) {
	var accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		w.Write([]byte(`{"devices":[]}`))
	}))
	defer srv.Close()

	raw, err := newTestFetcher(3).Fetch(context.Background(), "devices", srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"devices":[]}`, string(raw))
	assert.Equal(t, "application/json", accept)
}

func TestFetchRetryBound(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestFetcher(3).Fetch(context.Background(), "devices", srv.URL)

	var exhausted *FetchExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.EqualValues(t, 3, attempts.Load(), "an always-failing fetch makes exactly max-retries attempts")

	var attempt *AttemptError
	require.ErrorAs(t, err, &attempt)
	assert.Equal(t, KindHTTPStatus, attempt.Kind)
	assert.Equal(t, http.StatusInternalServerError, attempt.Status)
}

func TestFetchRecoversWithinBudget(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"mensagens":[]}`))
	}))
	defer srv.Close()

	raw, err := newTestFetcher(3).Fetch(context.Background(), "messages", srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mensagens":[]}`, string(raw))
	assert.EqualValues(t, 3, attempts.Load())
}

func TestFetchNonJSONBodyConsumesAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := newTestFetcher(2).Fetch(context.Background(), "devices", srv.URL)

	var exhausted *FetchExhaustedError
	require.ErrorAs(t, err, &exhausted)
	var attempt *AttemptError
	require.ErrorAs(t, err, &attempt)
	assert.Equal(t, KindParse, attempt.Kind)
}

func TestFetchStopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(5, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, "devices", srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must beat the retry delay")
}
