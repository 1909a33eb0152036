// Package scrape defines the extraction backend contracts and an HTTP
// client implementing them: a request/response endpoint for batch scans
// and a server-push streaming endpoint for single scans.
package scrape

import (
	"context"

	"imgscan/pkg/images"
)

// Request is the payload for the request/response extraction endpoint.
type Request struct {
	URL        string `json:"url"`
	DeepScrape bool   `json:"deepScrape"`
}

// Response is the request/response endpoint result. Error is set only
// when Success is false.
type Response struct {
	Success bool            `json:"success"`
	Images  []images.Record `json:"images,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Result is the final payload carried by a terminal complete event.
type Result struct {
	Status string          `json:"status"`
	URL    string          `json:"url"`
	Total  int             `json:"total"`
	Images []images.Record `json:"images"`
}

// Event is one message on the streaming channel. Exactly one of
// ProgressEvent, CompleteEvent or ErrorEvent, discriminated on the wire
// by the status field.
type Event interface {
	isEvent()
}

// ProgressEvent reports intermediate extraction progress.
type ProgressEvent struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// CompleteEvent is the successful terminal event of a stream.
type CompleteEvent struct {
	Result Result `json:"result"`
}

// ErrorEvent is the failed terminal event of a stream.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ProgressEvent) isEvent() {}
func (CompleteEvent) isEvent() {}
func (ErrorEvent) isEvent()    {}

// Extractor is the extraction backend as seen by the scan orchestrator.
type Extractor interface {
	// Extract runs one request/response extraction for a URL.
	Extract(ctx context.Context, req Request) ([]images.Record, error)

	// Stream opens the streaming endpoint for a URL. The returned channel
	// delivers events in arrival order and is closed after the terminal
	// event, or without one on transport failure.
	Stream(ctx context.Context, url string, deep bool) (<-chan Event, error)
}
