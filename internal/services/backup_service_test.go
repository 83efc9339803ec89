package services

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupLifecycle(t *testing.T) {
	db := newTestDB(t)
	createUser(t, db, "")
	dir := filepath.Join(t.TempDir(), "backups")
	svc := NewBackupService(db, NewEventService(db), dir)
	clock := time.Date(2024, 7, 1, 2, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	ctx := context.Background()

	first, err := svc.CreateBackup(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "Backup 2024-07-01 02:00", first.Name)
	assert.Equal(t, "homegrubhub_20240701020000.zip", first.FileName)
	assert.Positive(t, first.Size)

	zr, err := zip.OpenReader(first.Path)
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "homegrubhub.db", zr.File[0].Name)
	require.NoError(t, zr.Close())

	// Same second: the file name must not collide.
	second, err := svc.CreateBackup(ctx, "before upgrade")
	require.NoError(t, err)
	assert.NotEqual(t, first.FileName, second.FileName)

	clock = clock.Add(time.Hour)
	third, err := svc.CreateBackup(ctx, "latest")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "snapshots are removed after zipping")

	list, err := svc.ListBackups(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, third.ID, list[0].ID)

	removed, err := svc.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	_, err = os.Stat(first.Path)
	assert.True(t, os.IsNotExist(err))

	_, err = svc.GetBackupByID(ctx, first.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	assert.True(t, apperr.Is(svc.DeleteBackup(ctx, "missing"), apperr.CodeNotFound))
}
