package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestArchive(t *testing.T, handler http.Handler) *ReportArchive {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	a, err := New(client, Config{Bucket: "test-bucket", Prefix: "/reports/"})
	require.NoError(t, err)
	return a
}

func TestPutReportUploadsObject(t *testing.T) {
	var body atomic.Value
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/b/test-bucket/o") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		data, _ := io.ReadAll(r.Body)
		body.Store(string(data))
		fmt.Fprintln(w, `{"bucket":"test-bucket","name":"reports/run-1.txt"}`)
	})
	a := newTestArchive(t, handler)

	uri, err := a.PutReport(context.Background(), "run-1", "📺 Channel Status Report")
	require.NoError(t, err)
	require.Equal(t, "gs://test-bucket/reports/run-1.txt", uri)

	sent, _ := body.Load().(string)
	require.Contains(t, sent, "📺 Channel Status Report")
	require.Contains(t, sent, "reports/run-1.txt")
}

func TestPutReportServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	a := newTestArchive(t, handler)

	_, err := a.PutReport(context.Background(), "run-1", "report")
	require.Error(t, err)
}

func TestPutReportRequiresRunID(t *testing.T) {
	a := newTestArchive(t, http.NotFoundHandler())
	_, err := a.PutReport(context.Background(), "", "report")
	require.ErrorContains(t, err, "run id")
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()
	_, err = New(client, Config{})
	require.ErrorContains(t, err, "bucket")
}
