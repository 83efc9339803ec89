package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
	"github.com/robfig/cron/v3"
)

// JobServiceProvider defines the interface for maintenance job services.
type JobServiceProvider interface {
	GetAllJobs(ctx context.Context) ([]models.Job, error)
	GetJobByID(ctx context.Context, jobID string) (models.Job, error)
	GetAllActiveJobs(ctx context.Context) ([]models.Job, error)
	UpdateJob(ctx context.Context, jobID, cronExpression string, isActive bool) (models.Job, error)
	UpdateJobRunTimes(ctx context.Context, jobID string, lastRun, nextRun time.Time) error
	SetNextRun(ctx context.Context, jobID string, nextRun time.Time) error
}

// JobService provides business logic for maintenance job management.
type JobService struct {
	db           *sql.DB
	eventService EventServiceProvider
}

// NewJobService creates a new JobService.
func NewJobService(db *sql.DB, eventService EventServiceProvider) *JobService {
	return &JobService{
		db:           db,
		eventService: eventService,
	}
}

// validateCronExpression checks if a cron expression is valid.
func (s *JobService) validateCronExpression(spec string) (cron.Schedule, error) {
	return cron.ParseStandard(spec)
}

const jobColumns = "id, name, cron_expression, task_type, is_active, last_run_at, next_run_at, created_at"

// GetAllJobs retrieves every job ordered by name.
func (s *JobService) GetAllJobs(ctx context.Context) ([]models.Job, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+jobColumns+" FROM jobs ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanJobs(rows)
}

// GetJobByID retrieves a single job by its ID.
func (s *JobService) GetJobByID(ctx context.Context, jobID string) (models.Job, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", jobID)
	job, err := s.scanJob(row)
	if isNoRows(err) {
		return models.Job{}, apperr.NotFound("job", jobID)
	}
	return job, err
}

// GetAllActiveJobs retrieves all active jobs from the database.
func (s *JobService) GetAllActiveJobs(ctx context.Context) ([]models.Job, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE is_active = 1")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanJobs(rows)
}

// UpdateJob changes a job's schedule and active flag and recomputes its next run.
func (s *JobService) UpdateJob(ctx context.Context, jobID, cronExpression string, isActive bool) (models.Job, error) {
	cronSchedule, err := s.validateCronExpression(cronExpression)
	if err != nil {
		return models.Job{}, apperr.Validation("invalid cron expression: %v", err)
	}

	existing, err := s.GetJobByID(ctx, jobID)
	if err != nil {
		return models.Job{}, err
	}

	nextRun := cronSchedule.Next(time.Now().UTC())

	stmt, err := s.db.PrepareContext(ctx, `
		UPDATE jobs
		SET cron_expression = ?, is_active = ?, next_run_at = ?
		WHERE id = ?
	`)
	if err != nil {
		return models.Job{}, err
	}
	defer stmt.Close()

	if _, err = stmt.ExecContext(ctx, cronExpression, isActive, nextRun, jobID); err != nil {
		return models.Job{}, fmt.Errorf("failed to update job: %w", err)
	}

	s.eventService.Record(ctx, "job.update", LevelInfo, fmt.Sprintf("Job '%s' now runs on '%s'.", existing.Name, cronExpression), nil)
	return s.GetJobByID(ctx, jobID)
}

// UpdateJobRunTimes updates the last and next run times for a job after it executes.
func (s *JobService) UpdateJobRunTimes(ctx context.Context, jobID string, lastRun time.Time, nextRun time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE jobs SET last_run_at = ?, next_run_at = ? WHERE id = ?", lastRun.UTC(), nextRun.UTC(), jobID)
	return err
}

// SetNextRun schedules a job that has not run yet without touching last_run_at.
func (s *JobService) SetNextRun(ctx context.Context, jobID string, nextRun time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE jobs SET next_run_at = ? WHERE id = ?", nextRun.UTC(), jobID)
	return err
}

// scanJobs is a helper function to scan multiple rows into a slice of Jobs.
func (s *JobService) scanJobs(rows *sql.Rows) ([]models.Job, error) {
	jobs := []models.Job{}
	for rows.Next() {
		job, err := s.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// scanJob is a helper function to scan a single row into a Job struct.
func (s *JobService) scanJob(row scanner) (models.Job, error) {
	var job models.Job
	err := row.Scan(
		&job.ID,
		&job.Name,
		&job.CronExpression,
		&job.TaskType,
		&job.IsActive,
		&job.LastRunAt,
		&job.NextRunAt,
		&job.CreatedAt,
	)
	return job, err
}
