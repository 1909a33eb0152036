package backend

import (
	"context"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	errs "imgscan/pkg/errors"
	"imgscan/pkg/images"
)

// collectScript gathers every image the rendered page knows about,
// including dynamically injected <img> elements and CSS background
// images, with their natural dimensions.
const collectScript = `(() => {
	const found = [];
	const seen = new Set();
	const push = (src, w, h) => {
		if (!src || src.startsWith('data:') || seen.has(src)) return;
		seen.add(src);
		found.push({src: src, width: w || 0, height: h || 0});
	};
	for (const img of document.images) {
		push(img.currentSrc || img.src, img.naturalWidth, img.naturalHeight);
	}
	for (const el of document.querySelectorAll('*')) {
		const bg = getComputedStyle(el).backgroundImage;
		const m = bg && bg.match(/url\(["']?([^"')]+)["']?\)/);
		if (m) push(new URL(m[1], document.baseURI).href, 0, 0);
	}
	return found;
})()`

type deepImage struct {
	Src    string `json:"src"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ExtractDeep renders the page in headless Chrome, letting client-side
// scripts run before collecting images. Considerably slower than the
// static path; used only when deepScrape is requested.
func (e *Extractor) ExtractDeep(ctx context.Context, pageURL string) ([]images.Record, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(e.userAgent),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer func() {
		cancelBrowser()
		cancelAlloc()
	}()

	runCtx, cancel := context.WithTimeout(browserCtx, 60*time.Second)
	defer cancel()

	var found []deepImage
	// Navigation, settling and evaluation happen in a single Run so the
	// page state cannot change between steps.
	err := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(1500*time.Millisecond),
		chromedp.Evaluate(collectScript, &found),
	)
	if err != nil {
		e.logger.WithError(err).WithField("url", pageURL).Error("deep scan failed")
		return nil, errs.Newf(errs.ErrorTypeExtraction, "deep scan failed: %v", err)
	}

	records := make([]images.Record, 0, len(found))
	for _, img := range found {
		dims := "Unknown"
		if img.Width > 0 && img.Height > 0 {
			dims = formatDimensions(strconv.Itoa(img.Width), strconv.Itoa(img.Height))
		}
		records = append(records, images.Record{
			Src:        img.Src,
			Name:       images.NameFromURL(img.Src),
			Dimensions: dims,
		})
	}

	e.logger.DebugWithFields("deep extraction finished", map[string]interface{}{
		"url":    pageURL,
		"images": len(records),
	})
	return records, nil
}
