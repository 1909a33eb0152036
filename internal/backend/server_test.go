package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgscan/pkg/scrape"
)

func newTestBackend(t *testing.T, pageHTML string) (*httptest.Server, *httptest.Server) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, pageHTML)
	}))

	server := NewServer(NewExtractor(5*time.Second, "imgscan-test", nil), nil)
	api := httptest.NewServer(server.Routes())

	t.Cleanup(page.Close)
	t.Cleanup(api.Close)
	return api, page
}

func postScrape(t *testing.T, api *httptest.Server, req scrape.Request) scrape.Response {
	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(api.URL+"/api/scrape", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded scrape.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded
}

func TestHandleScrape(t *testing.T) {
	api, page := newTestBackend(t, `<html><body>
		<img src="https://cdn/a.jpg" width="640" height="480">
	</body></html>`)

	decoded := postScrape(t, api, scrape.Request{URL: page.URL})

	assert.True(t, decoded.Success)
	require.Len(t, decoded.Images, 1)
	assert.Equal(t, "https://cdn/a.jpg", decoded.Images[0].Src)
	assert.Equal(t, "640x480", decoded.Images[0].Dimensions)
}

func TestHandleScrapeInvalidURL(t *testing.T) {
	api, _ := newTestBackend(t, ``)

	decoded := postScrape(t, api, scrape.Request{URL: "not a url"})

	assert.False(t, decoded.Success)
	assert.Equal(t, "invalid URL", decoded.Error)
}

func TestHandleScrapeExtractionFailure(t *testing.T) {
	api, _ := newTestBackend(t, ``)

	// Unreachable target: the failure comes back as a payload, not a
	// transport-level error
	decoded := postScrape(t, api, scrape.Request{URL: "http://127.0.0.1:1"})

	assert.False(t, decoded.Success)
	assert.NotEmpty(t, decoded.Error)
	assert.Empty(t, decoded.Images)
}

func TestHandleScrapeRejectsGet(t *testing.T) {
	api, _ := newTestBackend(t, ``)

	resp, err := http.Get(api.URL + "/api/scrape")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandleScrapeBadBody(t *testing.T) {
	api, _ := newTestBackend(t, ``)

	resp, err := http.Post(api.URL+"/api/scrape", "application/json", strings.NewReader("{{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleStreamEndToEnd(t *testing.T) {
	api, page := newTestBackend(t, `<html><body>
		<img src="https://cdn/a.jpg">
		<img src="https://cdn/b.jpg">
	</body></html>`)

	// Consume the stream through the client the scan workflow uses
	client := scrape.NewClient(api.URL, 5*time.Second, nil)
	events, err := client.Stream(context.Background(), page.URL, false)
	require.NoError(t, err)

	var progress []scrape.ProgressEvent
	var complete *scrape.CompleteEvent
	for ev := range events {
		switch e := ev.(type) {
		case scrape.ProgressEvent:
			progress = append(progress, e)
		case scrape.CompleteEvent:
			complete = &e
		}
	}

	require.NotNil(t, complete, "expected a terminal complete event")
	assert.Equal(t, 2, complete.Result.Total)
	assert.Equal(t, page.URL, complete.Result.URL)
	assert.NotEmpty(t, progress)
	// Progress is monotonically non-decreasing across events
	last := -1
	for _, p := range progress {
		assert.GreaterOrEqual(t, p.Progress, last)
		last = p.Progress
	}
}

func TestHandleStreamInvalidURL(t *testing.T) {
	api, _ := newTestBackend(t, ``)

	resp, err := http.Get(api.URL + "/api/scrape/stream?url=nonsense")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"status":"error"`)
	assert.Contains(t, string(raw), "invalid URL")
}

func TestHandleStreamExtractionError(t *testing.T) {
	api, _ := newTestBackend(t, ``)

	client := scrape.NewClient(api.URL, 5*time.Second, nil)
	events, err := client.Stream(context.Background(), "http://127.0.0.1:1", false)
	require.NoError(t, err)

	var errEvent *scrape.ErrorEvent
	for ev := range events {
		if e, ok := ev.(scrape.ErrorEvent); ok {
			errEvent = &e
		}
	}
	require.NotNil(t, errEvent, "expected a terminal error event")
	assert.NotEmpty(t, errEvent.Message)
}

func TestHealthz(t *testing.T) {
	api, _ := newTestBackend(t, ``)

	resp, err := http.Get(api.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	api, page := newTestBackend(t, `<html><body><img src="https://cdn/a.jpg"></body></html>`)

	postScrape(t, api, scrape.Request{URL: page.URL})

	resp, err := http.Get(api.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, `imgscan_scrapes_total{mode="static"} 1`)
	assert.Contains(t, body, "imgscan_images_found_total 1")
}
