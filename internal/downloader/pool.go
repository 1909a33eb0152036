// Package downloader runs the concurrent image byte fetches behind
// multi-image export.
package downloader

import (
	"context"
	"sync"
	"time"

	"imgscan/pkg/logger"
	"imgscan/pkg/ratelimit"
)

// FetchJob is a single image fetch task.
type FetchJob struct {
	ID   int
	URL  string
	Name string
}

// FetchResult is the outcome of one fetch job.
type FetchResult struct {
	Job      FetchJob
	Data     []byte
	Err      error
	Duration time.Duration
}

// ImageFetcher fetches raw image bytes.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// Pool manages concurrent fetch workers feeding a result channel.
type Pool struct {
	numWorkers  int
	jobQueue    chan FetchJob
	resultQueue chan FetchResult
	wg          sync.WaitGroup
	ctx         context.Context
	fetcher     ImageFetcher
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
}

// NewPool creates a fetch worker pool. The rate limiter is optional.
func NewPool(ctx context.Context, numWorkers int, fetcher ImageFetcher, limiter ratelimit.Limiter, log logger.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan FetchJob, numWorkers*2),
		resultQueue: make(chan FetchResult, numWorkers),
		ctx:         ctx,
		fetcher:     fetcher,
		rateLimiter: limiter,
		logger:      log,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	p.logger.DebugWithFields("starting fetch pool", map[string]interface{}{
		"num_workers": p.numWorkers,
	})
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop signals no more jobs, waits for workers to drain the queue and
// closes the result channel.
func (p *Pool) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
}

// Submit adds a fetch job to the queue.
func (p *Pool) Submit(job FetchJob) error {
	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Results returns the result channel for consuming fetch outcomes.
func (p *Pool) Results() <-chan FetchResult {
	return p.resultQueue
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		result := p.processJob(job, id)

		select {
		case p.resultQueue <- result:
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) processJob(job FetchJob, workerID int) FetchResult {
	start := time.Now()

	if p.rateLimiter != nil && !p.rateLimiter.Allow() {
		p.rateLimiter.Wait()
	}

	data, err := p.fetcher.FetchImage(p.ctx, job.URL)
	result := FetchResult{
		Job:      job,
		Data:     data,
		Err:      err,
		Duration: time.Since(start),
	}

	if err != nil {
		p.logger.WarnWithFields("image fetch failed", map[string]interface{}{
			"worker_id": workerID,
			"url":       job.URL,
			"error":     err.Error(),
		})
		return result
	}

	p.logger.DebugWithFields("image fetched", map[string]interface{}{
		"worker_id": workerID,
		"url":       job.URL,
		"size":      len(data),
		"duration":  result.Duration,
	})
	return result
}
