package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	errs "mediacrawl/pkg/errors"
	"mediacrawl/pkg/fetcher"
	"mediacrawl/pkg/logger"
	"mediacrawl/pkg/naming"
)

// Task is one media URL waiting to be downloaded
type Task struct {
	SourceURL string
	Filename  string
}

// Outcome of a single task
type Outcome string

const (
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeFailed     Outcome = "failed"
)

// Result describes how a task ended
type Result struct {
	Task
	Outcome  Outcome
	Reason   string
	Bytes    int64
	Duration time.Duration
}

// Summary aggregates a DrainAll pass
type Summary struct {
	Queued     int
	Downloaded int
	Skipped    int
	Failed     int
	Bytes      int64
}

// Add folds other into s
func (s *Summary) Add(other Summary) {
	s.Queued += other.Queued
	s.Downloaded += other.Downloaded
	s.Skipped += other.Skipped
	s.Failed += other.Failed
	s.Bytes += other.Bytes
}

// Ledger is the dedup set plus the file writer for one directory
type Ledger interface {
	Reserve(filename string) bool
	Save(r io.Reader, filename string) (int64, error)
}

// Config wires a Queue
type Config struct {
	Ledger   Ledger
	Fetcher  fetcher.Fetcher
	Failures FailureRecorder
	// Timeout bounds each transfer
	Timeout time.Duration
	Logger  logger.Logger
	// OnResult, when set, observes every finished task
	OnResult func(ctx context.Context, r Result)
}

// Queue is a FIFO of download tasks drained one at a time. It is owned by a
// single goroutine.
type Queue struct {
	tasks    []Task
	ledger   Ledger
	fetcher  fetcher.Fetcher
	failures FailureRecorder
	timeout  time.Duration
	onResult func(ctx context.Context, r Result)
	logger   logger.Logger
}

// NewQueue creates an empty queue
func NewQueue(cfg Config) *Queue {
	log := cfg.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	return &Queue{
		ledger:   cfg.Ledger,
		fetcher:  cfg.Fetcher,
		failures: cfg.Failures,
		timeout:  cfg.Timeout,
		onResult: cfg.OnResult,
		logger:   log,
	}
}

// Enqueue appends a task for url
func (q *Queue) Enqueue(url string) {
	q.tasks = append(q.tasks, Task{
		SourceURL: url,
		Filename:  naming.DeriveFilename(url),
	})
}

// Len returns the number of pending tasks
func (q *Queue) Len() int {
	return len(q.tasks)
}

// DrainAll processes tasks in FIFO order until the queue is empty. Per-task
// failures are recorded and never stop the drain. It returns early, with
// ctx's error, only on cancellation; unprocessed tasks stay queued.
func (q *Queue) DrainAll(ctx context.Context) (Summary, error) {
	var summary Summary

	for len(q.tasks) > 0 {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		task := q.tasks[0]
		q.tasks[0] = Task{}
		q.tasks = q.tasks[1:]

		start := time.Now()
		result := q.process(ctx, task)
		result.Duration = time.Since(start)

		if ctx.Err() != nil && result.Outcome == OutcomeFailed {
			// interrupted transfers are not permanent failures
			return summary, ctx.Err()
		}

		summary.Queued++
		switch result.Outcome {
		case OutcomeDownloaded:
			summary.Downloaded++
			summary.Bytes += result.Bytes
		case OutcomeSkipped:
			summary.Skipped++
		case OutcomeFailed:
			summary.Failed++
			q.recordFailure(task, result.Reason)
		}

		if q.onResult != nil {
			q.onResult(ctx, result)
		}
	}

	return summary, nil
}

func (q *Queue) process(ctx context.Context, task Task) Result {
	result := Result{Task: task}

	if task.Filename == "" {
		result.Outcome = OutcomeFailed
		result.Reason = "no usable filename in url"
		logger.LogDownload(q.logger, task.SourceURL, "", false, errors.New(result.Reason))
		return result
	}

	// reservation is kept even if the transfer fails
	if !q.ledger.Reserve(task.Filename) {
		result.Outcome = OutcomeSkipped
		result.Reason = "already downloaded"
		logger.LogDownload(q.logger, task.SourceURL, task.Filename, false, nil)
		return result
	}

	n, err := q.transfer(ctx, task)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Reason = failureReason(err)
		result.Bytes = 0
		logger.LogDownload(q.logger, task.SourceURL, task.Filename, false, err)
		return result
	}

	result.Outcome = OutcomeDownloaded
	result.Bytes = n
	logger.LogDownload(q.logger, task.SourceURL, task.Filename, true, nil)
	return result
}

func (q *Queue) transfer(ctx context.Context, task Task) (int64, error) {
	resp, err := q.fetcher.Get(ctx, task.SourceURL, q.timeout)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := fetcher.CheckStatus(resp); err != nil {
		return 0, err
	}

	n, err := q.ledger.Save(resp.Body, task.Filename)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeTransfer, err, "write "+task.Filename)
	}
	return n, nil
}

// failureReason renders err for the failure log. Status failures read
// "HTTP <code>".
func failureReason(err error) string {
	var typed *errs.Error
	if errors.As(err, &typed) && typed.Type == errs.ErrorTypeHTTPStatus {
		return fmt.Sprintf("HTTP %d", typed.Code)
	}
	return err.Error()
}

func (q *Queue) recordFailure(task Task, reason string) {
	if q.failures == nil {
		return
	}
	if err := q.failures.Record(task.SourceURL, reason); err != nil {
		q.logger.WithError(err).Error("Could not record failed download")
	}
}
