package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/audio-translator/internal/metrics"
	"github.com/snarg/audio-translator/internal/pipeline"
)

// Runner executes one pipeline request.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Job is one inbox file waiting to be processed.
type Job struct {
	Path     string
	Enqueued time.Time
}

// QueueStats reports the current state of the inbox queue.
type QueueStats struct {
	Pending   int   `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// QueueOptions configures the inbox queue.
type QueueOptions struct {
	Runner         Runner
	SourceLanguage string
	TargetLanguage string
	QueueSize      int
	Log            zerolog.Logger
}

// Queue processes inbox files one at a time. Finished files are moved to
// done/ or failed/ next to the original so they are not picked up again.
type Queue struct {
	jobs   chan Job
	opts   QueueOptions
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	pending map[string]bool // queued or running, by path

	completed atomic.Int64
	failed    atomic.Int64
}

// NewQueue creates a new inbox queue.
func NewQueue(opts QueueOptions) *Queue {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		jobs:    make(chan Job, opts.QueueSize),
		opts:    opts,
		log:     opts.Log.With().Str("component", "inbox-queue").Logger(),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]bool),
	}
}

// Start launches the worker goroutine.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.worker()
	q.log.Info().Int("queue_size", cap(q.jobs)).Msg("inbox queue started")
}

// Stop cancels the run in progress and waits for the worker. Jobs still
// queued are skipped; their files stay in the inbox for the next start.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.cancel()
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	q.log.Info().
		Int64("completed", q.completed.Load()).
		Int64("failed", q.failed.Load()).
		Msg("inbox queue stopped")
}

// Enqueue adds a job to the queue. Returns false if the queue is full.
func (q *Queue) Enqueue(j Job) bool {
	if j.Enqueued.IsZero() {
		j.Enqueued = time.Now()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if q.pending[j.Path] {
		return true
	}
	select {
	case q.jobs <- j:
		q.pending[j.Path] = true
		metrics.InboxFilesTotal.WithLabelValues("queued").Inc()
		return true
	default:
		metrics.InboxFilesTotal.WithLabelValues("dropped").Inc()
		return false
	}
}

// Stats returns current queue statistics.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Pending:   len(q.jobs),
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
	}
}

// Pending returns the number of queued jobs.
func (q *Queue) Pending() int { return len(q.jobs) }

func (q *Queue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		if q.ctx.Err() == nil {
			q.handle(job)
		}
		q.mu.Lock()
		delete(q.pending, job.Path)
		q.mu.Unlock()
	}
}

func (q *Queue) handle(job Job) {
	log := q.log.With().Str("path", job.Path).Logger()
	err := q.processJob(log, job)
	if err != nil && q.ctx.Err() != nil {
		log.Info().Msg("inbox file interrupted by shutdown")
		return
	}
	if err != nil {
		q.failed.Add(1)
		metrics.InboxFilesTotal.WithLabelValues("failed").Inc()
		log.Warn().Err(err).Str("stage", string(pipeline.StageOf(err))).Msg("inbox file failed")
		q.moveTo(log, job.Path, "failed")
		return
	}
	q.completed.Add(1)
	metrics.InboxFilesTotal.WithLabelValues("ok").Inc()
	q.moveTo(log, job.Path, "done")
}

func (q *Queue) processJob(log zerolog.Logger, job Job) error {
	data, err := os.ReadFile(job.Path)
	if err != nil {
		return fmt.Errorf("read inbox file: %w", err)
	}

	res, err := q.opts.Runner.Run(q.ctx, pipeline.Request{
		AudioData:      data,
		Filename:       filepath.Base(job.Path),
		SourceLanguage: q.opts.SourceLanguage,
		TargetLanguage: q.opts.TargetLanguage,
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("job_id", res.JobID).
		Str("transcript", res.TranscriptKey).
		Str("translation", res.TranslationKey).
		Dur("queued", time.Since(job.Enqueued)).
		Msg("inbox file processed")
	return nil
}

// moveTo renames path into the named subdirectory of its parent.
func (q *Queue) moveTo(log zerolog.Logger, path, sub string) {
	dir := filepath.Join(filepath.Dir(path), sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("failed to create inbox subdirectory")
		return
	}
	dst := filepath.Join(dir, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("dst", dst).Msg("failed to move inbox file")
	}
}
