package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// JobState is a step in the monotonic lifecycle
// queued -> running -> (succeeded | failed).
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// Job is an asynchronous handle over one batch run. Result and Error are set
// exactly once, at the terminal transition.
type Job struct {
	ID        string       `json:"job_id"`
	State     JobState     `json:"state"`
	Result    *BatchResult `json:"result,omitempty"`
	Error     *ErrorInfo   `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type jobRecord struct {
	job         Job
	cancel      context.CancelFunc
	completedAt time.Time
}

// BatchRunner executes one batch under the job's context and returns its
// frozen result.
type BatchRunner func(ctx context.Context, jobID string) (*BatchResult, error)

// JobManager owns the registry of async jobs. It is constructed at service
// start and drained at shutdown; there is no process-wide instance.
type JobManager struct {
	mu        sync.RWMutex
	jobs      map[string]*jobRecord
	retention time.Duration
	log       *logrus.Logger
	wg        sync.WaitGroup
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewJobManager creates a manager that retains completed jobs for the given
// window; querying after expiry behaves exactly like an unknown id.
func NewJobManager(retention time.Duration, log *logrus.Logger) *JobManager {
	m := &JobManager{
		jobs:      make(map[string]*jobRecord),
		retention: retention,
		log:       log,
		stop:      make(chan struct{}),
	}
	if retention > 0 {
		go m.sweepLoop()
	}
	return m
}

// Submit registers a queued job and schedules run on its own goroutine. It
// returns the job id promptly, never blocking on the batch.
func (m *JobManager) Submit(run BatchRunner) string {
	jobID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()

	m.mu.Lock()
	m.jobs[jobID] = &jobRecord{
		job: Job{
			ID:        jobID,
			State:     JobQueued,
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancel: cancel,
	}
	m.mu.Unlock()

	m.wg.Add(1)
	go m.runJob(ctx, jobID, run)

	m.log.WithField("job_id", jobID).Info("async job created")
	return jobID
}

// GetStatus returns a consistent snapshot of the job, or ErrJobNotFound for
// unknown or expired ids.
func (m *JobManager) GetStatus(jobID string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.jobs[jobID]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return rec.job, nil
}

// Cancel requests cancellation of a queued or running job. In-flight model
// calls complete, but no new ones are issued and the job finalizes as failed
// with reason cancelled. Completed jobs cannot be cancelled.
func (m *JobManager) Cancel(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if rec.job.State == JobSucceeded || rec.job.State == JobFailed {
		return ErrJobNotFound
	}
	rec.cancel()
	m.log.WithField("job_id", jobID).Info("job cancellation requested")
	return nil
}

// Stats returns per-state job counts.
func (m *JobManager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := map[string]int{"total": len(m.jobs)}
	for _, rec := range m.jobs {
		stats[string(rec.job.State)]++
	}
	return stats
}

// Shutdown cancels all unfinished jobs and waits for their goroutines to
// drain.
func (m *JobManager) Shutdown() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.mu.Lock()
	for _, rec := range m.jobs {
		if rec.job.State == JobQueued || rec.job.State == JobRunning {
			rec.cancel()
		}
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *JobManager) runJob(ctx context.Context, jobID string, run BatchRunner) {
	defer m.wg.Done()

	if !m.transition(jobID, JobRunning, nil, nil) {
		return
	}

	result, err := run(ctx, jobID)

	switch {
	case ctx.Err() != nil:
		m.transition(jobID, JobFailed, nil, &ErrorInfo{Code: CodeCancelled, Message: "job was cancelled"})
		m.log.WithField("job_id", jobID).Info("job finalized as cancelled")
	case err != nil:
		m.transition(jobID, JobFailed, nil, InfoFromError(err))
		m.log.WithField("job_id", jobID).WithError(err).Error("job failed")
	default:
		m.transition(jobID, JobSucceeded, result, nil)
		m.log.WithFields(logrus.Fields{
			"job_id":    jobID,
			"succeeded": result.Aggregation.Succeeded,
			"failed":    result.Aggregation.Failed,
		}).Info("job completed")
	}
}

// transition advances the state machine. States never regress and terminal
// states are written exactly once.
func (m *JobManager) transition(jobID string, state JobState, result *BatchResult, errInfo *ErrorInfo) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[jobID]
	if !ok {
		return false
	}
	if rec.job.State == JobSucceeded || rec.job.State == JobFailed {
		return false
	}
	rec.job.State = state
	rec.job.UpdatedAt = time.Now()
	if state == JobSucceeded || state == JobFailed {
		rec.job.Result = result
		rec.job.Error = errInfo
		rec.completedAt = rec.job.UpdatedAt
	}
	return true
}

func (m *JobManager) sweepLoop() {
	ticker := time.NewTicker(m.retention / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweepExpired()
		case <-m.stop:
			return
		}
	}
}

func (m *JobManager) sweepExpired() {
	cutoff := time.Now().Add(-m.retention)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, rec := range m.jobs {
		terminal := rec.job.State == JobSucceeded || rec.job.State == JobFailed
		if terminal && rec.completedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		m.log.WithField("removed", removed).Debug("swept expired jobs")
	}
}
