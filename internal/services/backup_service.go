package services

import (
	"archive/zip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
	"github.com/rs/zerolog/log"
)

// snapshotEntry is the file name of the database inside each archive.
const snapshotEntry = "homegrubhub.db"

// BackupServiceProvider defines the interface for backup services.
type BackupServiceProvider interface {
	CreateBackup(ctx context.Context, name string) (models.Backup, error)
	ListBackups(ctx context.Context) ([]models.Backup, error)
	GetBackupByID(ctx context.Context, backupID string) (models.Backup, error)
	DeleteBackup(ctx context.Context, backupID string) error
	Prune(ctx context.Context, keep int) (int, error)
}

// BackupService snapshots the database into zip archives on disk.
type BackupService struct {
	db           *sql.DB
	eventService EventServiceProvider
	backupPath   string
	now          func() time.Time
}

// NewBackupService creates a new BackupService writing archives under backupPath.
func NewBackupService(db *sql.DB, eventService EventServiceProvider, backupPath string) *BackupService {
	return &BackupService{db: db, eventService: eventService, backupPath: backupPath, now: time.Now}
}

// CreateBackup writes a consistent copy of the database with VACUUM INTO and
// zips it. An empty name defaults to the timestamp.
func (s *BackupService) CreateBackup(ctx context.Context, name string) (models.Backup, error) {
	if err := os.MkdirAll(s.backupPath, 0755); err != nil {
		return models.Backup{}, fmt.Errorf("failed to create backup directory: %w", err)
	}

	now := s.now().UTC()
	backup := models.Backup{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		FileName:  fmt.Sprintf("homegrubhub_%s.zip", now.Format("20060102150405")),
		CreatedAt: now,
	}
	if backup.Name == "" {
		backup.Name = "Backup " + now.Format("2006-01-02 15:04")
	}
	if utf8.RuneCountInString(backup.Name) > 100 {
		return models.Backup{}, apperr.Validation("Backup name must be at most 100 characters")
	}
	backup.Path = filepath.Join(s.backupPath, backup.FileName)
	if _, err := os.Stat(backup.Path); err == nil {
		backup.FileName = fmt.Sprintf("homegrubhub_%s_%s.zip", now.Format("20060102150405"), backup.ID[:8])
		backup.Path = filepath.Join(s.backupPath, backup.FileName)
	}

	snapshot := filepath.Join(s.backupPath, backup.ID+".db")
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return models.Backup{}, fmt.Errorf("failed to snapshot database: %w", err)
	}
	defer os.Remove(snapshot)

	if err := zipFile(backup.Path, snapshot, snapshotEntry); err != nil {
		os.Remove(backup.Path) // Clean up partial file
		return models.Backup{}, fmt.Errorf("failed to zip snapshot: %w", err)
	}

	fi, err := os.Stat(backup.Path)
	if err != nil {
		return models.Backup{}, fmt.Errorf("could not get backup file info: %w", err)
	}
	backup.Size = fi.Size()

	_, err = s.db.ExecContext(ctx, "INSERT INTO backups (id, name, file_name, path, size, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		backup.ID, backup.Name, backup.FileName, backup.Path, backup.Size, backup.CreatedAt)
	if err != nil {
		os.Remove(backup.Path)
		return models.Backup{}, fmt.Errorf("failed to record backup: %w", err)
	}

	s.eventService.Record(ctx, "backup.create", LevelInfo, fmt.Sprintf("Backup '%s' created (%d bytes).", backup.Name, backup.Size), nil)
	return backup, nil
}

func zipFile(dst, src, entry string) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	w, err := zw.Create(entry)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if _, err := io.Copy(w, in); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}

const backupColumns = "id, name, file_name, path, size, created_at"

func scanBackup(row scanner) (models.Backup, error) {
	var b models.Backup
	err := row.Scan(&b.ID, &b.Name, &b.FileName, &b.Path, &b.Size, &b.CreatedAt)
	return b, err
}

// ListBackups returns every backup, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]models.Backup, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+backupColumns+" FROM backups ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	backups := []models.Backup{}
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, err
		}
		backups = append(backups, b)
	}
	return backups, rows.Err()
}

// GetBackupByID retrieves a single backup.
func (s *BackupService) GetBackupByID(ctx context.Context, backupID string) (models.Backup, error) {
	b, err := scanBackup(s.db.QueryRowContext(ctx, "SELECT "+backupColumns+" FROM backups WHERE id = ?", backupID))
	if isNoRows(err) {
		return b, apperr.NotFound("backup", backupID)
	}
	return b, err
}

// DeleteBackup deletes a backup from the filesystem and database.
func (s *BackupService) DeleteBackup(ctx context.Context, backupID string) error {
	backup, err := s.GetBackupByID(ctx, backupID)
	if err != nil {
		return err
	}

	if err := os.Remove(backup.Path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", backup.Path).Msg("Could not delete backup file")
	}

	if _, err = s.db.ExecContext(ctx, "DELETE FROM backups WHERE id = ?", backupID); err != nil {
		return err
	}
	s.eventService.Record(ctx, "backup.delete", LevelWarn, fmt.Sprintf("Backup '%s' was deleted.", backup.Name), nil)
	return nil
}

// Prune deletes all but the newest keep backups.
func (s *BackupService) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, b := range backups[min(keep, len(backups)):] {
		if err := s.DeleteBackup(ctx, b.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
