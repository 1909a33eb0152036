// Package backend implements the extraction service: it fetches or
// renders a page and returns the images it references, over a
// request/response endpoint and a streaming progress endpoint.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	errs "imgscan/pkg/errors"
	"imgscan/pkg/images"
	"imgscan/pkg/logger"
)

// Extractor discovers images referenced by a web page.
type Extractor struct {
	client    *http.Client
	userAgent string
	logger    logger.Logger
}

// NewExtractor creates an extractor with the given fetch timeout.
func NewExtractor(timeout time.Duration, userAgent string, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Extractor{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    log,
	}
}

// Extract fetches the page HTML and collects every referenced image:
// img src and srcset, picture sources, and og:image metadata. Relative
// URLs are resolved against the page URL (honoring <base href>).
func (e *Extractor) Extract(ctx context.Context, pageURL string) ([]images.Record, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeParsing, "invalid page URL: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeUnknown, "failed to create request: %v", err)
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeNetwork, "failed to fetch page: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeExtraction,
			Message: fmt.Sprintf("page returned status %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeParsing, "failed to parse HTML: %v", err)
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if baseHref, err := base.Parse(href); err == nil {
			base = baseHref
		}
	}

	collector := newCollector(base)

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		width, _ := sel.Attr("width")
		height, _ := sel.Attr("height")
		dims := formatDimensions(width, height)

		if src, ok := sel.Attr("src"); ok {
			collector.add(src, dims)
		}
		if src, ok := sel.Attr("data-src"); ok {
			collector.add(src, dims)
		}
		if srcset, ok := sel.Attr("srcset"); ok {
			collector.add(largestSrcsetCandidate(srcset), dims)
		}
	})

	doc.Find("picture source[srcset]").Each(func(_ int, sel *goquery.Selection) {
		srcset, _ := sel.Attr("srcset")
		collector.add(largestSrcsetCandidate(srcset), "")
	})

	doc.Find(`meta[property="og:image"], meta[name="twitter:image"]`).Each(func(_ int, sel *goquery.Selection) {
		content, _ := sel.Attr("content")
		collector.add(content, "")
	})

	e.logger.DebugWithFields("static extraction finished", map[string]interface{}{
		"url":    pageURL,
		"images": len(collector.records),
	})
	return collector.records, nil
}

// collector accumulates resolved image records, skipping repeats of the
// same resolved src within one page.
type collector struct {
	base    *url.URL
	seen    map[string]bool
	records []images.Record
}

func newCollector(base *url.URL) *collector {
	return &collector{base: base, seen: make(map[string]bool)}
}

func (c *collector) add(raw, dims string) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return
	}
	resolved, err := c.base.Parse(raw)
	if err != nil || (resolved.Scheme != "http" && resolved.Scheme != "https") {
		return
	}
	src := resolved.String()
	if c.seen[src] {
		return
	}
	c.seen[src] = true

	if dims == "" {
		dims = "Unknown"
	}
	c.records = append(c.records, images.Record{
		Src:        src,
		Name:       images.NameFromURL(src),
		Dimensions: dims,
	})
}

// formatDimensions builds "WIDTHxHEIGHT" from attribute values, falling
// back to "Unknown" when either is missing or non-numeric.
func formatDimensions(width, height string) string {
	if !isDigits(width) || !isDigits(height) {
		return "Unknown"
	}
	return width + "x" + height
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// largestSrcsetCandidate picks the candidate with the greatest width
// descriptor; without descriptors, the last candidate wins.
func largestSrcsetCandidate(srcset string) string {
	best := ""
	bestWidth := -1
	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(candidate))
		if len(fields) == 0 {
			continue
		}
		width := 0
		if len(fields) > 1 && strings.HasSuffix(fields[1], "w") {
			fmt.Sscanf(fields[1], "%dw", &width)
		}
		if width >= bestWidth {
			best = fields[0]
			bestWidth = width
		}
	}
	return best
}
