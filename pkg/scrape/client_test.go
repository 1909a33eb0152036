package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "imgscan/pkg/errors"
	"imgscan/pkg/images"
)

func TestExtractSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/scrape", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://example.com", req.URL)
		assert.True(t, req.DeepScrape)

		json.NewEncoder(w).Encode(Response{
			Success: true,
			Images: []images.Record{
				{Src: "https://example.com/a.jpg", Dimensions: "800x600"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)
	recs, err := client.Extract(context.Background(), Request{URL: "https://example.com", DeepScrape: true})

	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "https://example.com/a.jpg", recs[0].Src)
}

func TestExtractBackendFailureMessageVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{Success: false, Error: "page render timed out after 30s"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)
	_, err := client.Extract(context.Background(), Request{URL: "https://example.com"})

	require.Error(t, err)
	var typed *errs.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, errs.ErrorTypeBackend, typed.Type)
	assert.Equal(t, "page render timed out after 30s", typed.Message)
}

func TestExtractStatusCodeMapping(t *testing.T) {
	tests := []struct {
		code int
		want errs.ErrorType
	}{
		{http.StatusNotFound, errs.ErrorTypeNotFound},
		{http.StatusTooManyRequests, errs.ErrorTypeRateLimit},
		{http.StatusInternalServerError, errs.ErrorTypeServerError},
		{http.StatusBadGateway, errs.ErrorTypeServerError},
		{http.StatusForbidden, errs.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer server.Close()

			client := NewClient(server.URL, 5*time.Second, nil)
			_, err := client.Extract(context.Background(), Request{URL: "https://example.com"})

			var typed *errs.Error
			require.ErrorAs(t, err, &typed)
			assert.Equal(t, tt.want, typed.Type)
			assert.Equal(t, tt.code, typed.Code)
		})
	}
}

func TestExtractNetworkError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second, nil)
	_, err := client.Extract(context.Background(), Request{URL: "https://example.com"})

	var typed *errs.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, errs.ErrorTypeNetwork, typed.Type)
}

func sseHandler(t *testing.T, payloads ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/scrape/stream", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for _, p := range payloads {
			fmt.Fprintf(w, "data: %s\n\n", p)
			flusher.Flush()
		}
	}
}

func TestStreamProgressThenComplete(t *testing.T) {
	server := httptest.NewServer(sseHandler(t,
		`{"status":"fetching","progress":25,"message":"fetching page"}`,
		`{"status":"processing","progress":80,"message":"collecting images"}`,
		`{"status":"complete","result":{"status":"complete","url":"https://example.com","total":1,"images":[{"id":0,"src":"https://example.com/a.jpg"}]}}`,
	))
	defer server.Close()

	client := NewClient(server.URL, time.Second, nil)
	events, err := client.Stream(context.Background(), "https://example.com", false)
	require.NoError(t, err)

	var got []Event
	for ev := range events {
		got = append(got, ev)
	}

	require.Len(t, got, 3)
	assert.Equal(t, ProgressEvent{Status: "fetching", Progress: 25, Message: "fetching page"}, got[0])
	assert.Equal(t, ProgressEvent{Status: "processing", Progress: 80, Message: "collecting images"}, got[1])

	complete, ok := got[2].(CompleteEvent)
	require.True(t, ok)
	assert.Equal(t, 1, complete.Result.Total)
	require.Len(t, complete.Result.Images, 1)
	assert.Equal(t, "https://example.com/a.jpg", complete.Result.Images[0].Src)
}

func TestStreamErrorEventIsTerminal(t *testing.T) {
	server := httptest.NewServer(sseHandler(t,
		`{"status":"fetching","progress":25,"message":"fetching page"}`,
		`{"status":"error","message":"navigation failed"}`,
	))
	defer server.Close()

	client := NewClient(server.URL, time.Second, nil)
	events, err := client.Stream(context.Background(), "https://example.com", false)
	require.NoError(t, err)

	var got []Event
	for ev := range events {
		got = append(got, ev)
	}

	require.Len(t, got, 2)
	assert.Equal(t, ErrorEvent{Message: "navigation failed"}, got[1])
}

func TestStreamClosedWithoutTerminalEvent(t *testing.T) {
	// Server hangs up after progress; the channel closes with no terminal
	// event so the caller can treat it as a lost connection
	server := httptest.NewServer(sseHandler(t,
		`{"status":"fetching","progress":25,"message":"fetching page"}`,
	))
	defer server.Close()

	client := NewClient(server.URL, time.Second, nil)
	events, err := client.Stream(context.Background(), "https://example.com", false)
	require.NoError(t, err)

	var got []Event
	for ev := range events {
		got = append(got, ev)
	}

	require.Len(t, got, 1)
	_, isProgress := got[0].(ProgressEvent)
	assert.True(t, isProgress)
}

func TestStreamSkipsMalformedEvents(t *testing.T) {
	server := httptest.NewServer(sseHandler(t,
		`this is not json`,
		`{"status":"complete"}`,
		`{"status":"complete","result":{"status":"complete","url":"https://example.com","total":0,"images":[]}}`,
	))
	defer server.Close()

	client := NewClient(server.URL, time.Second, nil)
	events, err := client.Stream(context.Background(), "https://example.com", false)
	require.NoError(t, err)

	var got []Event
	for ev := range events {
		got = append(got, ev)
	}

	// The garbage line and the complete-without-result are dropped
	require.Len(t, got, 1)
	_, isComplete := got[0].(CompleteEvent)
	assert.True(t, isComplete)
}

func TestStreamDeepFlagOnQuery(t *testing.T) {
	var gotDeep, gotURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDeep = r.URL.Query().Get("deep")
		gotURL = r.URL.Query().Get("url")
		sseHandler(t, `{"status":"error","message":"stop"}`)(w, r)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, nil)
	events, err := client.Stream(context.Background(), "https://example.com/page", true)
	require.NoError(t, err)
	for range events {
	}

	assert.Equal(t, "true", gotDeep)
	assert.Equal(t, "https://example.com/page", gotURL)
}

func TestStreamOpenFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, nil)
	_, err := client.Stream(context.Background(), "https://example.com", false)

	var typed *errs.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, errs.ErrorTypeServerError, typed.Type)
}

func TestDecodeEvent(t *testing.T) {
	ev, terminal, err := decodeEvent([]byte(`{"status":"rendering","progress":50,"message":"rendering"}`))
	require.NoError(t, err)
	assert.False(t, terminal)
	assert.Equal(t, ProgressEvent{Status: "rendering", Progress: 50, Message: "rendering"}, ev)

	_, terminal, err = decodeEvent([]byte(`{"status":"error","message":"boom"}`))
	require.NoError(t, err)
	assert.True(t, terminal)

	_, _, err = decodeEvent([]byte(`{"status":"complete"}`))
	assert.Error(t, err)
}
