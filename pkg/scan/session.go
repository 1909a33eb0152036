// Package scan drives the end-to-end image scan workflow: single mode
// over the backend's streaming endpoint, batch mode fanned out through a
// bounded request queue, with deduplication and selection over the
// aggregated result set.
package scan

import (
	"context"
	"strings"
	"sync"

	errs "imgscan/pkg/errors"
	"imgscan/pkg/images"
	"imgscan/pkg/logger"
	"imgscan/pkg/queue"
	"imgscan/pkg/retry"
	"imgscan/pkg/scrape"
	"imgscan/pkg/selection"
	"imgscan/pkg/urlutil"
)

// Status is the orchestrator state for one scan invocation.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusValidating Status = "validating"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// URLStatus is the per-URL lifecycle in batch mode. A URL reaches exactly
// one terminal state and never transitions again.
type URLStatus string

const (
	URLPending    URLStatus = "pending"
	URLProcessing URLStatus = "processing"
	URLCompleted  URLStatus = "completed"
	URLFailed     URLStatus = "failed"
)

// BatchURLState tracks one input URL through a batch scan.
type BatchURLState struct {
	URL        string    `json:"url"`
	Status     URLStatus `json:"status"`
	ImageCount int       `json:"imageCount"`
	Error      string    `json:"error,omitempty"`
}

// Snapshot is a point-in-time copy of session state for display.
type Snapshot struct {
	Status            Status
	Progress          int
	Message           string
	Err               error
	Images            []images.Record
	DuplicatesRemoved int
	Batch             []BatchURLState
}

// FailedURLs counts batch entries that reached the failed state.
func (s Snapshot) FailedURLs() int {
	n := 0
	for _, b := range s.Batch {
		if b.Status == URLFailed {
			n++
		}
	}
	return n
}

// Options configures a scan session.
type Options struct {
	// ConcurrentRequests bounds simultaneous batch extraction requests.
	ConcurrentRequests int
	// MaxRetries bounds retry attempts per batch request. Streams are
	// never retried; a transport failure there is terminal.
	MaxRetries int
	Logger     logger.Logger
}

// Session owns one scan's state: images, selection, filters, per-URL
// batch progress. A Session can be reused; starting a new scan resets
// prior state and stale results from an abandoned scan are discarded.
type Session struct {
	extractor scrape.Extractor
	limit     int
	retries   int
	logger    logger.Logger

	mu                sync.Mutex
	gen               int
	status            Status
	progress          int
	message           string
	err               error
	records           []images.Record
	duplicatesRemoved int
	batch             []BatchURLState
	filter            images.FilterState
	selected          *selection.Set
	cancelStream      context.CancelFunc
	onSuccess         func(total int)
}

// NewSession creates a session talking to the given extraction backend.
func NewSession(extractor scrape.Extractor, opts Options) *Session {
	if opts.ConcurrentRequests < 1 {
		opts.ConcurrentRequests = 3
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	return &Session{
		extractor: extractor,
		limit:     opts.ConcurrentRequests,
		retries:   opts.MaxRetries,
		logger:    opts.Logger,
		status:    StatusIdle,
		selected:  selection.NewSet(),
	}
}

// OnSuccess registers a handler fired exactly once per completed scan
// that found at least one image. Advisory UI state, not correctness.
func (s *Session) OnSuccess(fn func(total int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSuccess = fn
}

// Snapshot returns a copy of the current scan state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Status:            s.status,
		Progress:          s.progress,
		Message:           s.message,
		Err:               s.err,
		Images:            append([]images.Record(nil), s.records...),
		DuplicatesRemoved: s.duplicatesRemoved,
		Batch:             append([]BatchURLState(nil), s.batch...),
	}
	return snap
}

// Selection exposes the session's selection set.
func (s *Session) Selection() *selection.Set {
	return s.selected
}

// SetFilter replaces the current filter state wholesale.
func (s *Session) SetFilter(f images.FilterState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
}

// Filtered returns the current collection narrowed by the active filter.
func (s *Session) Filtered() []images.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return images.Filter(s.records, s.filter)
}

// FormatCounts summarizes formats over the unfiltered collection.
func (s *Session) FormatCounts() []images.ValueCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return images.FormatCounts(s.records)
}

// SourceCounts summarizes source URLs over the unfiltered collection.
func (s *Session) SourceCounts() []images.ValueCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return images.SourceCounts(s.records)
}

// ToggleSelectAll runs the select/deselect-all action over the currently
// filtered view; ids hidden by the filter keep their selection state.
func (s *Session) ToggleSelectAll() {
	visible := s.Filtered()
	ids := make([]int, len(visible))
	for i, rec := range visible {
		ids[i] = rec.ID
	}
	s.selected.ToggleAll(ids)
}

// SelectedRecords returns the selected subset of the full collection in
// collection order.
func (s *Session) SelectedRecords() []images.Record {
	s.mu.Lock()
	records := append([]images.Record(nil), s.records...)
	s.mu.Unlock()

	var out []images.Record
	for _, rec := range records {
		if s.selected.Contains(rec.ID) {
			out = append(out, rec)
		}
	}
	return out
}

// reset clears prior scan state, closes any open stream and bumps the
// generation counter so late results from the previous scan cannot
// clobber the new one. Returns the new generation.
func (s *Session) reset() int {
	s.mu.Lock()
	cancel := s.cancelStream
	s.cancelStream = nil
	s.gen++
	gen := s.gen
	s.status = StatusValidating
	s.progress = 0
	s.message = ""
	s.err = nil
	s.records = nil
	s.duplicatesRemoved = 0
	s.batch = nil
	s.mu.Unlock()

	s.selected.Clear()
	if cancel != nil {
		cancel()
	}
	return gen
}

// current reports whether gen is still the live scan generation. Callers
// must hold s.mu.
func (s *Session) current(gen int) bool {
	return s.gen == gen
}

// fail transitions to Failed if gen is still current.
func (s *Session) fail(gen int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) {
		return
	}
	s.status = StatusFailed
	s.err = err
	if err != nil {
		s.message = err.Error()
	}
}

// complete commits the final result set, reseeds the selection to all
// ids and fires the success signal when at least one image was found.
func (s *Session) complete(gen int, result images.DedupResult) {
	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		return
	}
	s.status = StatusCompleted
	s.progress = 100
	s.records = result.Unique
	s.duplicatesRemoved = result.DuplicatesRemoved
	onSuccess := s.onSuccess
	total := len(result.Unique)
	s.mu.Unlock()

	ids := make([]int, len(result.Unique))
	for i, rec := range result.Unique {
		ids[i] = rec.ID
	}
	s.selected.Replace(ids)

	if total > 0 && onSuccess != nil {
		onSuccess(total)
	}
}

// assignIDs gives records session-local ids starting at next, filling in
// derived names and source attribution where the backend left them empty.
func assignIDs(records []images.Record, next int, sourceURL string) ([]images.Record, int) {
	out := make([]images.Record, len(records))
	for i, rec := range records {
		rec.ID = next
		next++
		if rec.Name == "" {
			rec.Name = images.NameFromURL(rec.Src)
		}
		if rec.SourceURL == "" {
			rec.SourceURL = sourceURL
		}
		out[i] = rec
	}
	return out, next
}

// ScanSingle runs a single-URL scan over the streaming endpoint,
// mirroring progress events into session state until the terminal event.
func (s *Session) ScanSingle(ctx context.Context, rawURL string, deep bool) error {
	gen := s.reset()

	target := strings.TrimSpace(rawURL)
	if !urlutil.IsValid(target) {
		err := errs.NoValidURLs()
		s.fail(gen, err)
		return err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		cancel()
		return errs.New(errs.ErrorTypeUnknown, "scan superseded")
	}
	s.status = StatusRunning
	s.message = "connecting"
	s.cancelStream = cancel
	s.mu.Unlock()

	s.logger.InfoWithFields("starting single scan", map[string]interface{}{
		"url":  target,
		"deep": deep,
	})

	events, err := s.extractor.Stream(streamCtx, target, deep)
	if err != nil {
		cancel()
		lost := errs.ConnectionLost()
		s.logger.WithError(err).Error("failed to open extraction stream")
		s.fail(gen, lost)
		return lost
	}
	defer cancel()

	for event := range events {
		switch ev := event.(type) {
		case scrape.ProgressEvent:
			s.mu.Lock()
			if s.current(gen) {
				// Each event's progress is authoritative, not accumulated
				s.progress = ev.Progress
				s.message = ev.Message
			}
			s.mu.Unlock()

		case scrape.CompleteEvent:
			recs, _ := assignIDs(ev.Result.Images, 1, "")
			s.complete(gen, images.Dedup(recs))
			s.logger.InfoWithFields("single scan completed", map[string]interface{}{
				"url":   target,
				"total": len(recs),
			})
			return nil

		case scrape.ErrorEvent:
			err := errs.New(errs.ErrorTypeBackend, ev.Message)
			s.fail(gen, err)
			s.logger.ErrorWithFields("backend reported scan error", map[string]interface{}{
				"url":     target,
				"message": ev.Message,
			})
			return err
		}
	}

	// Channel closed without a terminal event: transport failure.
	lost := errs.ConnectionLost()
	s.fail(gen, lost)
	s.logger.WithField("url", target).Error("extraction stream lost before terminal event")
	return lost
}

// ScanBatch runs a batch scan: every parsed URL is submitted through the
// concurrency queue, all tasks settle (one URL's failure never aborts the
// rest), then dedup runs over the union in URL input order.
func (s *Session) ScanBatch(ctx context.Context, rawInput string, deep bool) error {
	gen := s.reset()

	urls := urlutil.ParseList(rawInput)
	if len(urls) == 0 {
		err := errs.NoValidURLs()
		s.fail(gen, err)
		return err
	}

	states := make([]BatchURLState, len(urls))
	for i, u := range urls {
		states[i] = BatchURLState{URL: u, Status: URLPending}
	}

	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		return errs.New(errs.ErrorTypeUnknown, "scan superseded")
	}
	s.status = StatusRunning
	s.message = "scanning"
	s.batch = states
	s.mu.Unlock()

	s.logger.InfoWithFields("starting batch scan", map[string]interface{}{
		"urls": len(urls),
		"deep": deep,
	})

	// Each task owns its own slot by index; results are aggregated in
	// input order after the join barrier, never in completion order.
	results := make([][]images.Record, len(urls))
	q := queue.New(s.limit, s.logger)

	for i, u := range urls {
		i, u := i, u
		q.Submit(func() {
			s.setURLStatus(gen, i, URLProcessing, 0, "")

			recs, err := retry.DoWithResult(func() ([]images.Record, error) {
				return s.extractor.Extract(ctx, scrape.Request{URL: u, DeepScrape: deep})
			}, &retry.Config{
				MaxAttempts: s.retries + 1,
				Backoff:     retry.DefaultExponentialBackoff(),
				RetryIf:     retry.DefaultRetryIf,
				Context:     ctx,
				Logger:      s.logger,
			})
			if err != nil {
				s.logger.WarnWithFields("url extraction failed", map[string]interface{}{
					"url":   u,
					"error": err.Error(),
				})
				s.setURLStatus(gen, i, URLFailed, 0, err.Error())
				return
			}

			results[i] = recs
			s.setURLStatus(gen, i, URLCompleted, len(recs), "")
		})
	}

	q.Wait()

	// Union in input order, then each URL's image list order, so dedup
	// survivor choice stays deterministic.
	var union []images.Record
	nextID := 1
	for i, u := range urls {
		var tagged []images.Record
		tagged, nextID = assignIDs(results[i], nextID, u)
		union = append(union, tagged...)
	}

	deduped := images.Dedup(union)
	s.complete(gen, deduped)

	snap := s.Snapshot()
	s.logger.InfoWithFields("batch scan completed", map[string]interface{}{
		"urls":               len(urls),
		"failed_urls":        snap.FailedURLs(),
		"total":              len(deduped.Unique),
		"duplicates_removed": deduped.DuplicatesRemoved,
	})
	return nil
}

// setURLStatus updates one batch slot, guarding against stale
// generations and terminal-state re-transitions.
func (s *Session) setURLStatus(gen, idx int, status URLStatus, count int, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) || idx >= len(s.batch) {
		return
	}
	existing := s.batch[idx].Status
	if existing == URLCompleted || existing == URLFailed {
		return
	}
	s.batch[idx].Status = status
	s.batch[idx].ImageCount = count
	s.batch[idx].Error = errMsg
}
