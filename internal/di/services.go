package di

import (
	"context"
	"fmt"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/modules/assets"
	"github.com/aristath/allocator/internal/modules/calculations"
	"github.com/aristath/allocator/internal/modules/historical"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/reliability"
	"github.com/aristath/allocator/internal/scheduler"
	"github.com/rs/zerolog"
)

// InitializeServices creates storage, domain services and the scheduler.
// Databases must already be initialized.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container.HistoryDB == nil || container.CacheDB == nil {
		return fmt.Errorf("databases must be initialized before services")
	}

	container.Cache = calculations.NewCache(container.CacheDB.Conn())
	container.HistoryStore = historical.NewHistoryDB(container.HistoryDB.Conn(), log)
	container.HistoricalService = historical.NewService(container.HistoryStore, log)
	container.Importer = historical.NewImporter(container.HistoryStore, cfg.ImportDir, log)
	container.AssetManager = assets.NewManager(cfg.AssetsDir, log)

	container.OptimizationService = optimization.NewService(
		optimization.NewOptimizer(cfg.Solver),
		optimization.Options{
			RiskFreeRate: cfg.RiskFreeRate,
			CacheTTL:     cfg.CacheTTL,
		},
		log,
	)
	if cfg.CacheTTL > 0 {
		container.OptimizationService.SetCache(container.Cache)
	}

	if cfg.Backup.Enabled() {
		store, err := reliability.NewS3Client(ctx, reliability.S3Config{
			Bucket:          cfg.Backup.Bucket,
			Region:          cfg.Backup.Region,
			Endpoint:        cfg.Backup.Endpoint,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup client: %w", err)
		}

		container.BackupService = reliability.NewBackupService(
			store,
			[]reliability.Snapshotter{container.HistoryDB, container.CacheDB},
			cfg.DataDir,
			cfg.Backup.Prefix,
			log,
		)
		log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Backups enabled")
	}

	container.Scheduler = scheduler.New(log)

	log.Info().Msg("Services initialized")
	return nil
}
