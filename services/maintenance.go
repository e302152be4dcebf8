package services

import (
	"os"
	"path/filepath"
	"time"

	"finrag-backend/internal/config"
	"finrag-backend/internal/index"
	"finrag-backend/internal/logger"

	"github.com/go-co-op/gocron"
)

// MaintenanceService runs periodic housekeeping: pruning superseded index
// versions and sweeping scratch upload directories left behind by crashed
// rebuilds.
type MaintenanceService struct {
	cfg       *config.Config
	store     *index.Store
	scheduler *gocron.Scheduler
}

// NewMaintenanceService creates a new maintenance service
func NewMaintenanceService(cfg *config.Config, store *index.Store) *MaintenanceService {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &MaintenanceService{
		cfg:       cfg,
		store:     store,
		scheduler: s,
	}
}

// Start schedules the sweep and starts the scheduler in the background
func (m *MaintenanceService) Start() error {
	interval := time.Duration(m.cfg.MaintenanceInterval) * time.Minute
	_, err := m.scheduler.Every(interval).Tag("maintenance-sweep").Do(m.sweep)
	if err != nil {
		return err
	}

	m.scheduler.StartAsync()
	logger.Info("Maintenance scheduler started", "interval", interval.String())
	return nil
}

// Stop stops the scheduler
func (m *MaintenanceService) Stop() {
	m.scheduler.Stop()
}

func (m *MaintenanceService) sweep() {
	ttl := time.Duration(m.cfg.ScratchTTLMinutes) * time.Minute

	if err := m.store.Prune(ttl); err != nil {
		logger.Warn("Index version prune failed", "error", err)
	}

	m.sweepScratch(ttl)
}

// sweepScratch removes scratch upload subdirectories older than the TTL.
// Live uploads are deleted by their request handler; anything still here
// after the TTL belongs to a request that never finished.
func (m *MaintenanceService) sweepScratch(ttl time.Duration) {
	entries, err := os.ReadDir(m.cfg.UploadScratchDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to read scratch dir", "error", err)
		}
		return
	}

	cutoff := time.Now().Add(-ttl)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(m.cfg.UploadScratchDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			logger.Warn("Failed to remove stale scratch dir", "path", path, "error", err)
		} else {
			logger.Info("Removed stale scratch dir", "path", path)
		}
	}
}
