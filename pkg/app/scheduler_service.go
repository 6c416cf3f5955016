package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/greybell/butler/pkg/cron"
	"github.com/greybell/butler/pkg/domain"
	scheduledomain "github.com/greybell/butler/pkg/domain/schedule"
	"github.com/greybell/butler/pkg/logger"
)

// ---------------------------------------------------------------------------
// Scheduler service
// ---------------------------------------------------------------------------

// SchedulerService runs zero or more independent timed loops, one per
// enabled job. A firing loop never executes the job's action itself: it
// publishes an AgentEvent through the injected callback and lets the rule
// engine decide what happens. Each loop is an isolated failure domain:
// a panicking or unsatisfiable job terminates only its own loop.
type SchedulerService struct {
	repo     scheduledomain.Repository
	callback domain.EventCallback
	log      *slog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	jobs    map[domain.EntityID]*scheduledomain.Job
	loops   map[domain.EntityID]*loopHandle
	wg      sync.WaitGroup
}

// loopHandle tracks one live firing loop. The done channel closes when the
// loop goroutine has fully unwound.
type loopHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSchedulerService creates a scheduler over the given repository. The
// callback receives one AgentEvent per firing; it must be safe for
// concurrent use.
func NewSchedulerService(repo scheduledomain.Repository, callback domain.EventCallback) *SchedulerService {
	return &SchedulerService{
		repo:     repo,
		callback: callback,
		log:      logger.L().With("component", "scheduler"),
		jobs:     make(map[domain.EntityID]*scheduledomain.Job),
		loops:    make(map[domain.EntityID]*loopHandle),
	}
}

// Start loads all persisted jobs and spawns a firing loop for every enabled
// one. Idempotent: a running scheduler is left untouched. An unreadable job
// store degrades to an empty set with a logged warning.
func (s *SchedulerService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true

	jobs, err := s.repo.FindAll()
	if err != nil {
		s.log.Warn("failed to load job store, starting with no jobs", "error", err)
		jobs = nil
	}

	s.jobs = make(map[domain.EntityID]*scheduledomain.Job, len(jobs))
	for _, job := range jobs {
		s.jobs[job.JobID] = job
		if job.Enabled {
			s.scheduleLoopLocked(job)
		}
	}

	s.log.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop cancels every running loop and waits until each has finished
// unwinding. Idempotent.
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.loops = make(map[domain.EntityID]*loopHandle)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// Running reports whether the scheduler is active.
func (s *SchedulerService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ---------------------------------------------------------------------------
// Job management
// ---------------------------------------------------------------------------

// AddJob validates and persists the job. If the scheduler is running and
// the job is enabled, its loop starts immediately; a job with the same ID
// has its prior loop cancelled first.
func (s *SchedulerService) AddJob(job *scheduledomain.Job) (domain.EntityID, error) {
	if err := job.Validate(); err != nil {
		return "", err
	}
	if job.JobID.IsZero() {
		job.JobID = domain.NewID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Save(job); err != nil {
		return "", err
	}
	s.jobs[job.JobID] = job

	if s.running && job.Enabled {
		s.scheduleLoopLocked(job)
	}

	s.log.Info("job added", "job_id", job.JobID, "name", job.Name, "schedule_type", job.Type, "expression", job.Expression)
	return job.JobID, nil
}

// RemoveJob cancels the job's loop if present, deletes it from the store,
// and forgets it. Returns whether the job existed.
func (s *SchedulerService) RemoveJob(id domain.EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return false
	}

	s.cancelLoopLocked(id)
	delete(s.jobs, id)
	if err := s.repo.Delete(id); err != nil {
		s.log.Error("failed to delete job from store", "job_id", id, "error", err)
	}

	s.log.Info("job removed", "job_id", id)
	return true
}

// GetJob retrieves a job by ID from in-memory state.
func (s *SchedulerService) GetJob(id domain.EntityID) (*scheduledomain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, scheduledomain.ErrJobNotFound
	}
	return job, nil
}

// ListJobs returns all known jobs.
func (s *SchedulerService) ListJobs() []*scheduledomain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]*scheduledomain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// JobCount returns the number of known jobs.
func (s *SchedulerService) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// PauseJob disables the job, persists it, and cancels its loop. Returns
// whether the job existed.
func (s *SchedulerService) PauseJob(id domain.EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return false
	}

	job.Pause()
	if err := s.repo.Save(job); err != nil {
		s.log.Error("failed to persist paused job", "job_id", id, "error", err)
	}
	s.cancelLoopLocked(id)

	s.log.Info("job paused", "job_id", id)
	return true
}

// ResumeJob re-enables the job, persists it, and restarts its loop if the
// scheduler is running. Returns whether the job existed.
func (s *SchedulerService) ResumeJob(id domain.EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return false
	}

	job.Resume()
	if err := s.repo.Save(job); err != nil {
		s.log.Error("failed to persist resumed job", "job_id", id, "error", err)
	}
	if s.running {
		s.scheduleLoopLocked(job)
	}

	s.log.Info("job resumed", "job_id", id)
	return true
}

// ---------------------------------------------------------------------------
// Firing loops
// ---------------------------------------------------------------------------

// scheduleLoopLocked installs a fresh loop for the job, cancelling any
// prior loop for the same ID first. Caller holds s.mu.
func (s *SchedulerService) scheduleLoopLocked(job *scheduledomain.Job) {
	s.cancelLoopLocked(job.JobID)

	loopCtx, loopCancel := context.WithCancel(s.ctx)
	handle := &loopHandle{cancel: loopCancel, done: make(chan struct{})}
	s.loops[job.JobID] = handle

	s.wg.Add(1)
	go s.runLoop(loopCtx, job, handle)
}

// cancelLoopLocked cancels the job's loop if one exists. Caller holds s.mu.
func (s *SchedulerService) cancelLoopLocked(id domain.EntityID) {
	if handle, ok := s.loops[id]; ok {
		handle.cancel()
		delete(s.loops, id)
	}
}

// forgetLoop removes the loop entry on natural exit, but only if it still
// owns the slot; a replacement loop installed meanwhile is left alone.
func (s *SchedulerService) forgetLoop(id domain.EntityID, handle *loopHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.loops[id]; ok && current == handle {
		delete(s.loops, id)
	}
}

// runLoop drives one job until it finishes, errors, or is cancelled. All
// failure handling is local: a panic or error here never touches other
// loops or the scheduler's running flag.
func (s *SchedulerService) runLoop(ctx context.Context, job *scheduledomain.Job, handle *loopHandle) {
	defer s.wg.Done()
	defer close(handle.done)
	defer s.forgetLoop(job.JobID, handle)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job loop panicked", "job_id", job.JobID, "name", job.Name, "panic", r)
		}
	}()

	var err error
	switch job.Type {
	case domain.ScheduleOneShot:
		err = s.runOneShot(ctx, job)
	case domain.ScheduleInterval:
		err = s.runInterval(ctx, job)
	case domain.ScheduleCron:
		err = s.runCron(ctx, job)
	default:
		err = scheduledomain.ErrInvalidScheduleType
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		// Cancellation is the expected stop path and never logged as a failure.
		s.log.Error("job loop terminated", "job_id", job.JobID, "name", job.Name, "error", err)
	}
}

// runOneShot sleeps until the job's absolute timestamp (firing immediately
// if it is already past), fires once, and disables the job.
func (s *SchedulerService) runOneShot(ctx context.Context, job *scheduledomain.Job) error {
	at, err := job.FireAt()
	if err != nil {
		return err
	}

	if err := sleepUntil(ctx, at); err != nil {
		return err
	}
	s.fire(job)

	s.mu.Lock()
	job.Pause()
	if err := s.repo.Save(job); err != nil {
		s.log.Error("failed to persist fired one-shot job", "job_id", job.JobID, "error", err)
	}
	s.mu.Unlock()
	return nil
}

// runInterval fires every fixed duration while the service runs and the
// job stays enabled.
func (s *SchedulerService) runInterval(ctx context.Context, job *scheduledomain.Job) error {
	interval, err := scheduledomain.ParseInterval(job.Expression)
	if err != nil {
		return err
	}

	for {
		if err := sleepFor(ctx, interval); err != nil {
			return err
		}
		if !s.jobActive(job.JobID) {
			return nil
		}
		s.fire(job)
	}
}

// runCron computes each next occurrence with a bounded forward scan and
// sleeps until it. An unsatisfiable expression terminates only this loop;
// the job stays persisted and enabled for a later retry.
func (s *SchedulerService) runCron(ctx context.Context, job *scheduledomain.Job) error {
	sched, err := cron.Parse(job.Expression)
	if err != nil {
		return err
	}

	for {
		next, err := sched.Next(time.Now())
		if err != nil {
			return err
		}
		if err := sleepUntil(ctx, next); err != nil {
			return err
		}
		if !s.jobActive(job.JobID) {
			return nil
		}
		s.fire(job)
	}
}

// jobActive reports whether the job is still known, enabled, and the
// scheduler is running.
func (s *SchedulerService) jobActive(id domain.EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	return s.running && ok && job.Enabled
}

// fire records the firing, persists the job, and publishes the event.
func (s *SchedulerService) fire(job *scheduledomain.Job) {
	now := time.Now()

	s.mu.Lock()
	job.MarkFired(now)
	if err := s.repo.Save(job); err != nil {
		s.log.Error("failed to persist fired job", "job_id", job.JobID, "error", err)
	}
	s.mu.Unlock()

	event := domain.NewAgentEvent(
		domain.SourceScheduler,
		domain.EventScheduleTriggered,
		domain.Payload{
			"job_id":   job.JobID.String(),
			"job_name": job.Name,
			"action":   job.Action,
		},
		domain.Metadata{"schedule_type": job.Type.String()},
	)

	s.log.Debug("job fired", "job_id", job.JobID, "name", job.Name)
	if s.callback != nil {
		s.callback(event)
	}
}

// ---------------------------------------------------------------------------
// Cooperative sleeping
// ---------------------------------------------------------------------------

// sleepFor waits the given duration or returns early with the context error.
func sleepFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sleepUntil waits until an absolute instant, returning immediately if it
// is already past.
func sleepUntil(ctx context.Context, at time.Time) error {
	d := time.Until(at)
	if d <= 0 {
		return nil
	}
	return sleepFor(ctx, d)
}
