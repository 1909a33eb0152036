package scrape

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	errs "imgscan/pkg/errors"
	"imgscan/pkg/images"
	"imgscan/pkg/logger"
)

const (
	extractPath = "/api/scrape"
	streamPath  = "/api/scrape/stream"
)

// Client talks to an extraction backend over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     logger.Logger
}

// NewClient creates a backend client. The timeout applies to
// request/response extractions only; streams live until their terminal
// event.
func NewClient(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     log,
	}
}

// Extract runs one request/response extraction for a URL.
func (c *Client) Extract(ctx context.Context, req Request) ([]images.Record, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeParsing, "failed to encode request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+extractPath, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeUnknown, "failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	c.logger.DebugWithFields("sending extraction request", map[string]interface{}{
		"url":  req.URL,
		"deep": req.DeepScrape,
	})

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeNetwork, "network error: %v", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var decoded Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errs.Newf(errs.ErrorTypeParsing, "failed to parse response: %v", err)
	}

	c.logger.DebugWithFields("extraction request completed", map[string]interface{}{
		"url":      req.URL,
		"success":  decoded.Success,
		"images":   len(decoded.Images),
		"duration": time.Since(start),
	})

	if !decoded.Success {
		msg := decoded.Error
		if msg == "" {
			msg = "extraction failed"
		}
		// Backend-reported messages pass through verbatim
		return nil, errs.New(errs.ErrorTypeBackend, msg)
	}
	return decoded.Images, nil
}

// Stream opens the streaming extraction endpoint. Events are delivered in
// arrival order; the channel is closed after the terminal event, or
// without one if the transport fails mid-stream.
func (c *Client) Stream(ctx context.Context, target string, deep bool) (<-chan Event, error) {
	query := url.Values{}
	query.Set("url", target)
	if deep {
		query.Set("deep", "true")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+streamPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeUnknown, "failed to create request: %v", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	// The stream must outlive the client's request timeout; cancellation
	// comes from ctx instead.
	streamClient := &http.Client{}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeNetwork, "failed to open stream: %v", err)
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	events := make(chan Event)
	go c.readStream(ctx, resp.Body, target, events)
	return events, nil
}

// readStream parses server-sent events until a terminal event or a
// transport failure, then closes the channel.
func (c *Client) readStream(ctx context.Context, body io.ReadCloser, target string, events chan<- Event) {
	defer close(events)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "data:") {
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			continue
		}
		if line != "" || data.Len() == 0 {
			continue
		}

		event, terminal, err := decodeEvent([]byte(data.String()))
		data.Reset()
		if err != nil {
			c.logger.WarnWithFields("skipping malformed stream event", map[string]interface{}{
				"url":   target,
				"error": err.Error(),
			})
			continue
		}

		select {
		case events <- event:
		case <-ctx.Done():
			return
		}
		if terminal {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		c.logger.ErrorWithFields("stream transport failed", map[string]interface{}{
			"url":   target,
			"error": err.Error(),
		})
	}
}

// wireEvent is the loosely typed on-wire payload, narrowed into the
// Event variant by decodeEvent.
type wireEvent struct {
	Status   string  `json:"status"`
	Progress int     `json:"progress"`
	Message  string  `json:"message"`
	Result   *Result `json:"result"`
}

func decodeEvent(data []byte) (Event, bool, error) {
	var raw wireEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false, err
	}

	switch raw.Status {
	case "complete":
		if raw.Result == nil {
			return nil, false, fmt.Errorf("complete event without result")
		}
		return CompleteEvent{Result: *raw.Result}, true, nil
	case "error":
		return ErrorEvent{Message: raw.Message}, true, nil
	default:
		return ProgressEvent{
			Status:   raw.Status,
			Progress: raw.Progress,
			Message:  raw.Message,
		}, false, nil
	}
}

// checkStatus maps HTTP response codes onto the error taxonomy.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return &errs.Error{Type: errs.ErrorTypeNotFound, Message: "resource not found", Code: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "rate limit exceeded", Code: resp.StatusCode}
	case resp.StatusCode >= 500:
		return &errs.Error{Type: errs.ErrorTypeServerError, Message: "server error", Code: resp.StatusCode}
	default:
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
}
