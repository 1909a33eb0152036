package export

import (
	"context"
	"io"
	"net/http"
	"time"

	errs "imgscan/pkg/errors"
	"imgscan/pkg/logger"
)

// HTTPFetcher fetches image bytes over plain HTTP GET.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	logger    logger.Logger
}

// NewHTTPFetcher creates a fetcher with the given timeout and user agent.
func NewHTTPFetcher(timeout time.Duration, userAgent string, log logger.Logger) *HTTPFetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    log,
	}
}

// FetchImage downloads one image and returns its bytes.
func (f *HTTPFetcher) FetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeUnknown, "failed to create request: %v", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeNetwork, "network error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t := errs.ErrorTypeUnknown
		switch {
		case resp.StatusCode == http.StatusNotFound:
			t = errs.ErrorTypeNotFound
		case resp.StatusCode == http.StatusTooManyRequests:
			t = errs.ErrorTypeRateLimit
		case resp.StatusCode >= 500:
			t = errs.ErrorTypeServerError
		}
		return nil, &errs.Error{Type: t, Message: "image fetch failed", Code: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeNetwork, "failed to read image body: %v", err)
	}
	return data, nil
}
