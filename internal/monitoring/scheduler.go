package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/homegrubhub/homegrubhub-be/internal/models"
	"github.com/homegrubhub/homegrubhub-be/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Task runs one maintenance job and returns a short summary for the activity log.
type Task func(ctx context.Context) (string, error)

// Scheduler checks for and executes due maintenance jobs.
type Scheduler struct {
	jobSvc   services.JobServiceProvider
	eventSvc services.EventServiceProvider
	tasks    map[string]Task
	interval time.Duration
	now      func() time.Time

	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	exited chan struct{} // closed when Run returns; nil until Run starts
}

// NewScheduler creates a new scheduler instance with the given task handlers,
// keyed by job task type.
func NewScheduler(jobSvc services.JobServiceProvider, eventSvc services.EventServiceProvider, tasks map[string]Task) *Scheduler {
	return &Scheduler{
		jobSvc:   jobSvc,
		eventSvc: eventSvc,
		tasks:    tasks,
		interval: time.Minute,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Run starts the scheduler's ticking loop. It returns when Stop is called or
// ctx is cancelled, after in-flight jobs finish.
func (s *Scheduler) Run(ctx context.Context) {
	exited := make(chan struct{})
	s.mu.Lock()
	s.exited = exited
	s.mu.Unlock()
	defer close(exited)

	select {
	case <-s.done:
		return
	default:
	}

	log.Info().Msg("Starting background scheduler...")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.wg.Wait()

	s.checkAndRunJobs(ctx)

	for {
		select {
		case <-s.done:
			log.Info().Msg("Stopping background scheduler.")
			return
		case <-ctx.Done():
			log.Info().Msg("Stopping background scheduler.")
			return
		case <-ticker.C:
			s.checkAndRunJobs(ctx)
		}
	}
}

// Stop halts the scheduler and blocks until a running Run loop has returned,
// so no job is still using the database afterwards. It is safe to call more
// than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	exited := s.exited
	s.mu.Unlock()
	if exited != nil {
		<-exited
	}
}

// checkAndRunJobs starts every active job whose next run time has passed.
// Jobs that have never been scheduled get a next run time and wait for it.
func (s *Scheduler) checkAndRunJobs(ctx context.Context) {
	jobs, err := s.jobSvc.GetAllActiveJobs(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Scheduler: failed to retrieve active jobs")
		return
	}

	now := s.now().UTC()
	for _, job := range jobs {
		schedule, err := cron.ParseStandard(job.CronExpression)
		if err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("Scheduler: invalid cron expression")
			continue
		}

		if job.NextRunAt == nil {
			if err := s.jobSvc.SetNextRun(ctx, job.ID, schedule.Next(now)); err != nil {
				log.Error().Err(err).Str("job_id", job.ID).Msg("Scheduler: failed to initialise next run")
			}
			continue
		}
		if now.Before(*job.NextRunAt) {
			continue
		}

		if err := s.jobSvc.UpdateJobRunTimes(ctx, job.ID, now, schedule.Next(now)); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("Scheduler: failed to update run times")
			continue
		}
		s.wg.Add(1)
		go func(job models.Job) {
			defer s.wg.Done()
			s.executeJob(ctx, job)
		}(job)
	}
}

// executeJob performs the task behind a job and records the outcome.
func (s *Scheduler) executeJob(ctx context.Context, job models.Job) {
	log.Info().Str("job", job.Name).Str("task_type", job.TaskType).Msg("Scheduler: executing job")

	var summary string
	var err error
	if task, ok := s.tasks[job.TaskType]; ok {
		summary, err = task(ctx)
	} else {
		err = fmt.Errorf("unknown task type '%s' for job %s", job.TaskType, job.ID)
	}

	if err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("Scheduler: job failed")
		s.eventSvc.Record(ctx, "job.execute.fail", services.LevelError, fmt.Sprintf("Job '%s' failed: %v", job.Name, err), nil)
		return
	}
	msg := fmt.Sprintf("Job '%s' executed successfully.", job.Name)
	if summary != "" {
		msg = fmt.Sprintf("Job '%s' executed successfully: %s", job.Name, summary)
	}
	s.eventSvc.Record(ctx, "job.execute.success", services.LevelInfo, msg, nil)
}
