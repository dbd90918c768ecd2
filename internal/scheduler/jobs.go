package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/allocator/internal/modules/historical"
	"github.com/rs/zerolog"
)

const (
	importTimeout = 10 * time.Minute
	backupTimeout = 30 * time.Minute
)

// PriceImporter imports price files from the drop directory
type PriceImporter interface {
	ImportAll(ctx context.Context) (*historical.ImportSummary, error)
}

// ExpiredCache removes expired cache entries
type ExpiredCache interface {
	DeleteExpired() (int64, error)
}

// BackupRunner snapshots the databases and prunes old snapshots
type BackupRunner interface {
	CreateBackup(ctx context.Context) (string, error)
	RotateOldBackups(ctx context.Context, retentionDays int) (int, error)
}

// ImportPricesJob imports CSV prices dropped into the import directory
type ImportPricesJob struct {
	log      zerolog.Logger
	importer PriceImporter
}

// NewImportPricesJob creates a new ImportPricesJob
func NewImportPricesJob(importer PriceImporter) *ImportPricesJob {
	return &ImportPricesJob{log: zerolog.Nop(), importer: importer}
}

// SetLogger sets the logger for the job
func (j *ImportPricesJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *ImportPricesJob) Name() string {
	return "import_prices"
}

// Run executes the import prices job
func (j *ImportPricesJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
	defer cancel()

	summary, err := j.importer.ImportAll(ctx)
	if err != nil {
		return fmt.Errorf("price import failed: %w", err)
	}

	j.log.Debug().
		Int("files", summary.Files).
		Int("skipped", summary.Skipped).
		Int("rows", summary.Rows).
		Msg("Price import pass finished")

	if len(summary.Failed) > 0 {
		return fmt.Errorf("%d price files failed to import: %v", len(summary.Failed), summary.Failed)
	}
	return nil
}

// CleanupCacheJob removes expired optimization results
type CleanupCacheJob struct {
	log   zerolog.Logger
	cache ExpiredCache
}

// NewCleanupCacheJob creates a new CleanupCacheJob
func NewCleanupCacheJob(cache ExpiredCache) *CleanupCacheJob {
	return &CleanupCacheJob{log: zerolog.Nop(), cache: cache}
}

// SetLogger sets the logger for the job
func (j *CleanupCacheJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *CleanupCacheJob) Name() string {
	return "cleanup_cache"
}

// Run executes the cleanup cache job
func (j *CleanupCacheJob) Run() error {
	removed, err := j.cache.DeleteExpired()
	if err != nil {
		return fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("Removed expired cache entries")
	}
	return nil
}

// BackupJob uploads a database snapshot and rotates old ones
type BackupJob struct {
	log           zerolog.Logger
	backup        BackupRunner
	retentionDays int
}

// NewBackupJob creates a new BackupJob
func NewBackupJob(backup BackupRunner, retentionDays int) *BackupJob {
	return &BackupJob{log: zerolog.Nop(), backup: backup, retentionDays: retentionDays}
}

// SetLogger sets the logger for the job
func (j *BackupJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup job. Rotation failures are logged but do not
// fail a run whose upload succeeded.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	key, err := j.backup.CreateBackup(ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	j.log.Info().Str("key", key).Msg("Backup uploaded")

	if j.retentionDays > 0 {
		deleted, err := j.backup.RotateOldBackups(ctx, j.retentionDays)
		if err != nil {
			j.log.Warn().Err(err).Msg("Failed to rotate old backups")
		} else if deleted > 0 {
			j.log.Info().Int("deleted", deleted).Msg("Rotated old backups")
		}
	}
	return nil
}
