package export

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "imgscan/pkg/errors"
	"imgscan/pkg/images"
	"imgscan/pkg/storage"
)

func imageServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.jpg":
			w.Write([]byte("jpeg-bytes-a"))
		case "/b.png":
			w.Write([]byte("png-bytes-b"))
		case "/missing.gif":
			http.NotFound(w, r)
		default:
			t.Errorf("unexpected fetch path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
}

func newTestExporter(t *testing.T, dir string) *Exporter {
	store, err := storage.NewManager(dir)
	require.NoError(t, err)
	fetcher := NewHTTPFetcher(5*time.Second, "imgscan-test", nil)
	return New(fetcher, store, nil, 2, nil)
}

func readZip(t *testing.T, path string) map[string][]byte {
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = data
	}
	return out
}

func TestSaveOne(t *testing.T) {
	server := imageServer(t)
	defer server.Close()

	dir := t.TempDir()
	exporter := newTestExporter(t, dir)

	path, err := exporter.SaveOne(context.Background(), images.Record{
		ID: 1, Src: server.URL + "/a.jpg", Name: "a.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.jpg"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes-a"), data)
}

func TestSaveOneFetchFailure(t *testing.T) {
	server := imageServer(t)
	defer server.Close()

	exporter := newTestExporter(t, t.TempDir())
	_, err := exporter.SaveOne(context.Background(), images.Record{
		ID: 1, Src: server.URL + "/missing.gif", Name: "missing.gif",
	})
	require.Error(t, err)

	var typed *errs.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, errs.ErrorTypeNotFound, typed.Type)
}

func TestSaveArchive(t *testing.T) {
	server := imageServer(t)
	defer server.Close()

	dir := t.TempDir()
	exporter := newTestExporter(t, dir)

	summary, err := exporter.SaveArchive(context.Background(), []images.Record{
		{ID: 1, Src: server.URL + "/a.jpg", Name: "a.jpg"},
		{ID: 2, Src: server.URL + "/b.png", Name: "b.png"},
	}, "bundle.zip")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "bundle.zip"), summary.Path)
	assert.Equal(t, 2, summary.Packed)
	assert.Equal(t, 0, summary.Skipped)

	entries := readZip(t, summary.Path)
	assert.Equal(t, []byte("jpeg-bytes-a"), entries["a.jpg"])
	assert.Equal(t, []byte("png-bytes-b"), entries["b.png"])
}

func TestSaveArchiveSkipsFailedFetches(t *testing.T) {
	server := imageServer(t)
	defer server.Close()

	exporter := newTestExporter(t, t.TempDir())

	summary, err := exporter.SaveArchive(context.Background(), []images.Record{
		{ID: 1, Src: server.URL + "/a.jpg", Name: "a.jpg"},
		{ID: 2, Src: server.URL + "/missing.gif", Name: "missing.gif"},
		{ID: 3, Src: server.URL + "/b.png", Name: "b.png"},
	}, "bundle.zip")

	// A failed fetch is skipped, never aborting the archive
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Packed)
	assert.Equal(t, 1, summary.Skipped)

	entries := readZip(t, summary.Path)
	assert.Len(t, entries, 2)
	assert.NotContains(t, entries, "missing.gif")
}

func TestSaveArchiveNameCollision(t *testing.T) {
	server := imageServer(t)
	defer server.Close()

	exporter := newTestExporter(t, t.TempDir())

	// Two records share a name; both entries are written and a ZIP
	// extractor applying them in order ends up with the later payload
	summary, err := exporter.SaveArchive(context.Background(), []images.Record{
		{ID: 1, Src: server.URL + "/a.jpg", Name: "image.jpg"},
		{ID: 2, Src: server.URL + "/b.png", Name: "image.jpg"},
	}, "bundle.zip")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Packed)

	zr, err := zip.OpenReader(summary.Path)
	require.NoError(t, err)
	defer zr.Close()

	require.Len(t, zr.File, 2)
	assert.Equal(t, "image.jpg", zr.File[0].Name)
	assert.Equal(t, "image.jpg", zr.File[1].Name)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	last, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes-b"), last)
}

func TestSaveArchiveEmptySelection(t *testing.T) {
	exporter := newTestExporter(t, t.TempDir())
	_, err := exporter.SaveArchive(context.Background(), nil, "bundle.zip")
	assert.Error(t, err)
}

func TestFetchImageSendsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(time.Second, "imgscan/1.0", nil)
	data, err := fetcher.FetchImage(context.Background(), server.URL+"/x.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
	assert.Equal(t, "imgscan/1.0", gotUA)
}
