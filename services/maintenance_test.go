package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"finrag-backend/internal/config"
	"finrag-backend/internal/index"
)

func TestSweepScratchRemovesStaleDirs(t *testing.T) {
	scratch := t.TempDir()

	stale := filepath.Join(scratch, "stale-batch")
	fresh := filepath.Join(scratch, "fresh-batch")
	for _, dir := range []string{stale, fresh} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		UploadScratchDir:  scratch,
		ScratchTTLMinutes: 60,
	}
	m := NewMaintenanceService(cfg, index.NewStore(t.TempDir()))
	m.sweep()

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale scratch dir should be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh scratch dir should survive the sweep")
	}
}

func TestSweepMissingScratchDirIsQuiet(t *testing.T) {
	cfg := &config.Config{
		UploadScratchDir:  filepath.Join(t.TempDir(), "does-not-exist"),
		ScratchTTLMinutes: 60,
	}
	m := NewMaintenanceService(cfg, index.NewStore(t.TempDir()))
	m.sweep()
}
