package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, handler http.Handler) *storage.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(
		context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewValidatesInput(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "bucket"})
	require.Error(t, err)

	client := newTestClient(t, http.NotFoundHandler())
	_, err = New(client, Config{Bucket: " "})
	require.Error(t, err)
}

func TestPutObjectUploads(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		gotName  string
		gotBody  string
		gotPath  string
		gotQuery string
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		mu.Lock()
		gotPath = r.URL.Path
		gotName = r.URL.Query().Get("name")
		gotQuery = r.URL.Query().Get("uploadType")
		gotBody = string(body)
		mu.Unlock()
		fmt.Fprintln(w, `{"name":"runs/run-1/0_40.1_-75.5_20240301_120000.csv","bucket":"wigle-bucket"}`)
	})

	store, err := New(newTestClient(t, handler), Config{Bucket: "wigle-bucket"})
	require.NoError(t, err)

	uri, err := store.PutObject(
		context.Background(),
		"/runs/run-1/0_40.1_-75.5_20240301_120000.csv",
		"text/csv",
		strings.NewReader("netid,ssid\naa,one\n"),
	)
	require.NoError(t, err)
	assert.Equal(t, "gs://wigle-bucket/runs/run-1/0_40.1_-75.5_20240301_120000.csv", uri)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, gotPath, "/b/wigle-bucket/o")
	assert.Equal(t, "runs/run-1/0_40.1_-75.5_20240301_120000.csv", gotName)
	assert.Equal(t, "multipart", gotQuery)
	assert.Contains(t, gotBody, "netid,ssid\naa,one\n")
	assert.Contains(t, gotBody, "text/csv")
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	store, err := New(newTestClient(t, http.NotFoundHandler()), Config{Bucket: "wigle-bucket"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "/", "text/csv", strings.NewReader("x"))
	require.Error(t, err)
}

func TestPutObjectSurfacesServerErrors(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
	})
	store, err := New(newTestClient(t, handler), Config{Bucket: "wigle-bucket"})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "runs/x.csv", "text/csv", strings.NewReader("x"))
	require.Error(t, err)
}
