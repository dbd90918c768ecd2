// Package di wires databases, services and background jobs into a Container.
package di

import (
	"github.com/aristath/allocator/internal/database"
	"github.com/aristath/allocator/internal/modules/assets"
	"github.com/aristath/allocator/internal/modules/calculations"
	"github.com/aristath/allocator/internal/modules/historical"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/reliability"
	"github.com/aristath/allocator/internal/scheduler"
)

// Container holds all dependencies for the application. It is created by
// Wire and handed to the HTTP server.
type Container struct {
	// Databases
	HistoryDB *database.DB // history.db: daily prices, import log
	CacheDB   *database.DB // cache.db: optimization results

	// Storage
	Cache        *calculations.Cache
	HistoryStore *historical.HistoryDB

	// Services
	HistoricalService   *historical.Service
	Importer            *historical.Importer
	AssetManager        *assets.Manager
	OptimizationService *optimization.Service
	BackupService       *reliability.BackupService // nil when backups are disabled

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered background jobs
type JobInstances struct {
	ImportPrices        *scheduler.ImportPricesJob
	CleanupCache        *scheduler.CleanupCacheJob
	CheckWALCheckpoints *scheduler.CheckWALCheckpointsJob
	Maintenance         *reliability.MaintenanceJob
	Backup              *scheduler.BackupJob // nil when backups are disabled
}

// Databases returns every open database
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.HistoryDB, c.CacheDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close closes every open database, returning the first error
func (c *Container) Close() error {
	var firstErr error
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
