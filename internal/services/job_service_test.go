package services

import (
	"context"
	"testing"
	"time"

	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobServiceSeededJobs(t *testing.T) {
	db := newTestDB(t)
	svc := NewJobService(db, NewEventService(db))

	jobs, err := svc.GetAllActiveJobs(context.Background())
	require.NoError(t, err)
	types := map[string]bool{}
	for _, j := range jobs {
		types[j.TaskType] = true
	}
	assert.Equal(t, map[string]bool{"pantry_sweep": true, "price_refresh": true, "event_prune": true, "cache_purge": true}, types)
}

func TestJobServiceUpdate(t *testing.T) {
	db := newTestDB(t)
	svc := NewJobService(db, NewEventService(db))
	ctx := context.Background()

	job, err := svc.UpdateJob(ctx, "job-event-prune", "0 4 * * *", false)
	require.NoError(t, err)
	assert.Equal(t, "0 4 * * *", job.CronExpression)
	assert.False(t, job.IsActive)
	require.NotNil(t, job.NextRunAt)
	assert.Equal(t, 4, job.NextRunAt.UTC().Hour())

	_, err = svc.UpdateJob(ctx, "job-event-prune", "not a cron", true)
	assert.True(t, apperr.Is(err, apperr.CodeValidationFailed))

	_, err = svc.UpdateJob(ctx, "missing", "* * * * *", true)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	active, err := svc.GetAllActiveJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 3)
}

func TestJobServiceRunTimes(t *testing.T) {
	db := newTestDB(t)
	svc := NewJobService(db, NewEventService(db))
	ctx := context.Background()

	last := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
	require.NoError(t, svc.UpdateJobRunTimes(ctx, "job-pantry-sweep", last, last.Add(24*time.Hour)))

	job, err := svc.GetJobByID(ctx, "job-pantry-sweep")
	require.NoError(t, err)
	require.NotNil(t, job.LastRunAt)
	assert.True(t, job.LastRunAt.Equal(last))
}
