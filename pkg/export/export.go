// Package export turns selected image records into saved files: a direct
// save for one image, a ZIP archive for many.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"

	"imgscan/internal/downloader"
	"imgscan/pkg/images"
	"imgscan/pkg/logger"
	"imgscan/pkg/ratelimit"
	"imgscan/pkg/storage"
)

// Exporter fetches selected images and writes them through a storage
// manager.
type Exporter struct {
	fetcher     downloader.ImageFetcher
	storage     *storage.Manager
	rateLimiter ratelimit.Limiter
	concurrency int
	logger      logger.Logger
}

// ArchiveSummary reports what went into an archive export.
type ArchiveSummary struct {
	Path    string
	Packed  int
	Skipped int
}

// New creates an exporter. The rate limiter is optional.
func New(fetcher downloader.ImageFetcher, store *storage.Manager, limiter ratelimit.Limiter, concurrency int, log logger.Logger) *Exporter {
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Exporter{
		fetcher:     fetcher,
		storage:     store,
		rateLimiter: limiter,
		concurrency: concurrency,
		logger:      log,
	}
}

// SaveOne fetches a single image and saves it under its name.
func (e *Exporter) SaveOne(ctx context.Context, rec images.Record) (string, error) {
	data, err := e.fetcher.FetchImage(ctx, rec.Src)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", rec.Src, err)
	}
	path, err := e.storage.SaveFile(rec.Name, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	e.logger.InfoWithFields("image saved", map[string]interface{}{
		"name": rec.Name,
		"path": path,
		"size": len(data),
	})
	return path, nil
}

// SaveArchive fetches every record concurrently (best effort: a failed
// fetch is logged and skipped, never aborting the archive), packs the
// successes into one ZIP keyed by name and saves it under archiveName.
// Name collisions are not deduplicated; entries are written in record
// order so the last write wins on extraction.
func (e *Exporter) SaveArchive(ctx context.Context, recs []images.Record, archiveName string) (ArchiveSummary, error) {
	if len(recs) == 0 {
		return ArchiveSummary{}, fmt.Errorf("no images selected for archive")
	}

	pool := downloader.NewPool(ctx, e.concurrency, e.fetcher, e.rateLimiter, e.logger)
	pool.Start()

	fetched := make(map[int][]byte, len(recs))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for result := range pool.Results() {
			if result.Err != nil {
				// Recovered locally: skip the file, log only
				continue
			}
			fetched[result.Job.ID] = result.Data
		}
	}()

	for _, rec := range recs {
		if err := pool.Submit(downloader.FetchJob{ID: rec.ID, URL: rec.Src, Name: rec.Name}); err != nil {
			break
		}
	}
	pool.Stop()
	<-done

	// Entries are written in record order regardless of fetch
	// completion order.
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	packed := 0
	for _, rec := range recs {
		data, ok := fetched[rec.ID]
		if !ok {
			continue
		}
		w, err := zw.Create(rec.Name)
		if err != nil {
			zw.Close()
			return ArchiveSummary{}, fmt.Errorf("failed to add %s to archive: %w", rec.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			zw.Close()
			return ArchiveSummary{}, fmt.Errorf("failed to write %s to archive: %w", rec.Name, err)
		}
		packed++
	}
	if err := zw.Close(); err != nil {
		return ArchiveSummary{}, fmt.Errorf("failed to finalize archive: %w", err)
	}

	path, err := e.storage.SaveFile(archiveName, &buf)
	if err != nil {
		return ArchiveSummary{}, err
	}

	summary := ArchiveSummary{
		Path:    path,
		Packed:  packed,
		Skipped: len(recs) - packed,
	}
	e.logger.InfoWithFields("archive saved", map[string]interface{}{
		"path":    summary.Path,
		"packed":  summary.Packed,
		"skipped": summary.Skipped,
	})
	return summary, nil
}
