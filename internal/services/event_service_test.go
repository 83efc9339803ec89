package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventServiceRecordAndList(t *testing.T) {
	db := newTestDB(t)
	svc := NewEventService(db)
	ctx := context.Background()

	user := createUser(t, db, "")
	svc.Record(ctx, "recipe.create", LevelInfo, "Recipe created.", &user.ID)
	svc.Record(ctx, "job.execute", LevelInfo, "Job ran.", nil)

	events, err := svc.GetRecentEvents(ctx, 0)
	require.NoError(t, err)
	// user.register is recorded by createUser as well.
	require.Len(t, events, 3)
	assert.Equal(t, "job.execute", events[0].Type)
	assert.Nil(t, events[0].UserID)
}

func TestEventServicePrune(t *testing.T) {
	db := newTestDB(t)
	svc := NewEventService(db)
	ctx := context.Background()

	_, err := db.Exec("INSERT INTO events (id, type, level, message, created_at) VALUES ('old', 't', 'info', 'm', ?)", time.Now().UTC().AddDate(0, 0, -100))
	require.NoError(t, err)
	svc.Record(ctx, "fresh", LevelInfo, "new", nil)

	n, err := svc.PruneBefore(ctx, time.Now().AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	events, err := svc.GetRecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "fresh", events[0].Type)
}

func TestEventServiceCreateEventError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare("INSERT INTO events").ExpectExec().WillReturnError(errors.New("disk full"))

	svc := NewEventService(db)
	err = svc.CreateEvent(context.Background(), "t", LevelInfo, "m", nil)
	assert.EqualError(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}
