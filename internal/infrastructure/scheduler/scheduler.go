// Package scheduler runs background re-push jobs for products whose last
// synchronization failed.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
)

var (
	ErrSchedulerNotRunning = errors.New("scheduler: not running")
	// ErrJobQueueFull means the job was dropped; the next sweep picks its products up again.
	ErrJobQueueFull        = errors.New("scheduler: job queue full")
	ErrInvalidConfig       = errors.New("scheduler: workers, job timeout and queue size must be positive")
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusPartial JobStatus = "PARTIAL"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job re-pushes a batch of products to one store of one platform
type Job struct {
	ID           uuid.UUID
	Platform     integration.PlatformCode
	StoreID      string
	CanonicalIDs []uuid.UUID
	Status       JobStatus
	Error        string
	StartedAt    *time.Time
	CompletedAt  *time.Time

	// results
	SucceededCount int
	FailedCount    int
}

// NewJob creates a pending job
func NewJob(platform integration.PlatformCode, storeID string, canonicalIDs []uuid.UUID) *Job {
	return &Job{
		ID:           uuid.New(),
		Platform:     platform,
		StoreID:      storeID,
		CanonicalIDs: canonicalIDs,
		Status:       JobStatusPending,
	}
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete records the per-item results
func (j *Job) Complete(succeeded, failed int) {
	now := time.Now()
	j.SucceededCount = succeeded
	j.FailedCount = failed
	j.CompletedAt = &now

	switch {
	case failed == 0:
		j.Status = JobStatusSuccess
	case succeeded > 0:
		j.Status = JobStatusPartial
	default:
		j.Status = JobStatusFailed
	}
}

// Fail marks the job as failed
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// JobExecutor executes re-push jobs
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	QueueSize         int
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxConcurrentJobs: 2,
		JobTimeout:        10 * time.Minute,
		QueueSize:         100,
	}
}

// Validate checks the configuration
func (c SchedulerConfig) Validate() error {
	if c.MaxConcurrentJobs <= 0 || c.JobTimeout <= 0 || c.QueueSize <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Scheduler runs submitted jobs on a fixed worker pool
type Scheduler struct {
	config   SchedulerConfig
	executor JobExecutor
	logger   *zap.Logger

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	onDone    func(*Job)
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config SchedulerConfig, executor JobExecutor, logger *zap.Logger) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan *Job, config.QueueSize),
	}, nil
}

// OnJobDone registers a callback invoked after every finished job.
// It must be set before Start.
func (s *Scheduler) OnJobDone(fn func(*Job)) {
	s.onDone = fn
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Resync scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	if s.cancel != nil {
		s.cancel()
	}
	close(s.jobs)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Resync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Resync scheduler stop timed out")
		return ctx.Err()
	}
}

// SubmitJob queues a job without blocking
func (s *Scheduler) SubmitJob(job *Job) error {
	// held across the send so Stop cannot close the channel underneath it
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		s.logger.Debug("Job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("platform", job.Platform.String()),
			zap.String("store_id", job.StoreID),
			zap.Int("products", len(job.CanonicalIDs)),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	job.Start()
	fields := []zap.Field{
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("platform", job.Platform.String()),
		zap.String("store_id", job.StoreID),
	}
	s.logger.Info("Processing resync job", append(fields, zap.Int("products", len(job.CanonicalIDs)))...)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	var err error
	telemetry.WithProfilingLabels(jobCtx, telemetry.SyncLabels(job.Platform.String(), "resync"), func(ctx context.Context) {
		err = s.executor.Execute(ctx, job)
	})
	if err != nil {
		job.Fail(err.Error())
		s.logger.Error("Resync job failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Info("Resync job finished", append(fields,
			zap.String("status", string(job.Status)),
			zap.Int("succeeded", job.SucceededCount),
			zap.Int("failed", job.FailedCount),
		)...)
	}

	if s.onDone != nil {
		s.onDone(job)
	}
}
