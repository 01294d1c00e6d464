package server

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
	"git.home.luguber.info/inful/deploybuilder/internal/metrics"
	"git.home.luguber.info/inful/deploybuilder/internal/pipeline"
)

// ErrQueueFull is returned by Enqueue when the job buffer is exhausted.
var ErrQueueFull = stdErrors.New("deploy queue is full")

// ProcessFunc builds one job. A non-nil error marks the job failed; the
// report is kept either way.
type ProcessFunc func(ctx context.Context, job *Job) (*pipeline.Report, error)

// Queue feeds jobs to a fixed set of workers and remembers recent jobs.
type Queue struct {
	jobs        chan *Job
	workers     int
	process     ProcessFunc
	recorder    metrics.Recorder
	historySize int

	mu    sync.RWMutex
	known map[string]*Job
	order []string

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewQueue creates a queue holding up to maxSize pending jobs.
func NewQueue(maxSize, workers int, process ProcessFunc, recorder metrics.Recorder) *Queue {
	if maxSize <= 0 {
		maxSize = 100
	}
	if workers <= 0 {
		workers = 2
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Queue{
		jobs:        make(chan *Job, maxSize),
		workers:     workers,
		process:     process,
		recorder:    recorder,
		historySize: 200,
		known:       make(map[string]*Job),
		stop:        make(chan struct{}),
	}
}

// Start launches the workers. They exit when ctx is canceled or Stop is called.
func (q *Queue) Start(ctx context.Context) {
	slog.Info("Starting deploy queue", slog.Int("workers", q.workers), slog.Int("max_size", cap(q.jobs)))
	for range q.workers {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })
	q.wg.Wait()
}

// Length returns the number of jobs waiting for a worker.
func (q *Queue) Length() int {
	return len(q.jobs)
}

// Enqueue registers job as queued and hands it to the workers.
func (q *Queue) Enqueue(job *Job) error {
	if job == nil || job.ID == "" {
		return stdErrors.New("job ID is required")
	}
	q.mu.Lock()
	job.Status = StatusQueued
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	select {
	case q.jobs <- job:
	default:
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.remember(job)
	q.mu.Unlock()
	q.recorder.SetQueueDepth(q.Length())
	return nil
}

// Snapshot returns a copy of the job with id.
func (q *Queue) Snapshot(id string) (Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	j, ok := q.known[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// List returns copies of the remembered jobs, newest first.
func (q *Queue) List() []Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Job, 0, len(q.order))
	for i := len(q.order) - 1; i >= 0; i-- {
		out = append(out, *q.known[q.order[i]])
	}
	return out
}

// remember must be called with mu held.
func (q *Queue) remember(job *Job) {
	q.known[job.ID] = job
	q.order = append(q.order, job.ID)
	for len(q.order) > q.historySize {
		oldest := q.known[q.order[0]]
		if oldest.Status == StatusQueued || oldest.Status == StatusBuilding {
			break
		}
		delete(q.known, q.order[0])
		q.order = q.order[1:]
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stop:
			return
		case job := <-q.jobs:
			q.recorder.SetQueueDepth(q.Length())
			q.run(ctx, job)
		}
	}
}

func (q *Queue) run(ctx context.Context, job *Job) {
	started := time.Now()
	q.mu.Lock()
	job.Status = StatusBuilding
	job.StartedAt = &started
	q.mu.Unlock()

	report, err := q.process(ctx, job)

	finished := time.Now()
	q.mu.Lock()
	job.CompletedAt = &finished
	job.Report = report
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
	} else {
		job.Status = StatusDeployed
	}
	q.mu.Unlock()

	if err != nil {
		slog.Error("Deploy failed", logfields.JobID(job.ID), logfields.Error(err))
		return
	}
	slog.Info("Deploy finished", logfields.JobID(job.ID), logfields.Site(job.Site),
		logfields.DurationMS(float64(finished.Sub(started).Microseconds())/1000))
}

// siteLocks serializes runs that share a deploy target.
type siteLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *siteLocks) lock(site string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[site]
	if !ok {
		m = &sync.Mutex{}
		l.locks[site] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
