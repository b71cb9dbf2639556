package fetch

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gunzipFile(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	b, err := io.ReadAll(gz)
	require.NoError(t, err)
	return string(b)
}

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/GetDevices/"):
			w.Write([]byte(`{"devices":[{"ID":"A","codMarinha":"BR1","nome":"Boat1"}]}`))
		case strings.HasPrefix(r.URL.Path, "/GetMessages/"):
			w.Write([]byte(`{"mensagens":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestCollectStagesBothCollections(t *testing.T) {
	srv := newAPIServer(t)
	defer srv.Close()

	dir := t.TempDir()
	c := &Collector{Base: srv.URL, Token: "tok", Fetcher: newTestFetcher(3)}
	day := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	devicesPath, messagesPath, err := c.Collect(context.Background(), day, dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "devices", "2021-01-01.json.gz"), devicesPath)
	assert.Equal(t, filepath.Join(dir, "messages", "2021-01-01.json.gz"), messagesPath)
	assert.JSONEq(t, `{"devices":[{"ID":"A","codMarinha":"BR1","nome":"Boat1"}]}`, gunzipFile(t, devicesPath))
	assert.JSONEq(t, `{"mensagens":[]}`, gunzipFile(t, messagesPath))
}

func TestCollectRerunOverwritesInsteadOfAppending(t *testing.T) {
	srv := newAPIServer(t)
	defer srv.Close()

	dir := t.TempDir()
	c := &Collector{Base: srv.URL, Token: "tok", Fetcher: newTestFetcher(3)}
	day := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _, err := c.Collect(context.Background(), day, dir)
	require.NoError(t, err)
	devicesPath, _, err := c.Collect(context.Background(), day, dir)
	require.NoError(t, err)

	// A second run replaces the staging file; double-append would make the
	// content invalid JSON.
	assert.JSONEq(t, `{"devices":[{"ID":"A","codMarinha":"BR1","nome":"Boat1"}]}`, gunzipFile(t, devicesPath))
}

func TestCollectMessagesFailureLeavesDevicesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/GetDevices/") {
			w.Write([]byte(`{"devices":[]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := &Collector{Base: srv.URL, Token: "tok", Fetcher: newTestFetcher(2)}
	day := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _, err := c.Collect(context.Background(), day, dir)
	var exhausted *FetchExhaustedError
	require.ErrorAs(t, err, &exhausted)

	_, statErr := os.Stat(filepath.Join(dir, "devices", "2021-01-01.json.gz"))
	assert.NoError(t, statErr, "no transactional guarantee across the two fetches")
}
