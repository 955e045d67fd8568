package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TONEARM_DATA_DIR", t.TempDir())

	cfg := Load()
	if cfg.DBPath != filepath.Join(cfg.DataDir, "tonearm.db") {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Volume != 0.7 {
		t.Errorf("Volume = %v, want 0.7", cfg.Volume)
	}
	if cfg.DeviceTimeout != 5*time.Second {
		t.Errorf("DeviceTimeout = %v, want 5s", cfg.DeviceTimeout)
	}
	if cfg.PlayedThreshold != 0 {
		t.Errorf("PlayedThreshold = %v, want 0", cfg.PlayedThreshold)
	}
	if cfg.ScanWorkers != 4 {
		t.Errorf("ScanWorkers = %d, want 4", cfg.ScanWorkers)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TONEARM_DATA_DIR", dir)
	t.Setenv("TONEARM_DB", "/elsewhere/library.db")
	t.Setenv("TONEARM_VOLUME", "0.25")
	t.Setenv("TONEARM_DEVICE_TIMEOUT", "10s")
	t.Setenv("TONEARM_STALL_TIMEOUT", "750ms")
	t.Setenv("TONEARM_PLAYED_THRESHOLD", "0.5")
	t.Setenv("TONEARM_SCAN_WORKERS", "8")
	t.Setenv("TONEARM_LOG_LEVEL", "debug")
	t.Setenv("TONEARM_LOG_CONSOLE", "true")

	cfg := Load()
	if cfg.DataDir != dir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, dir)
	}
	if cfg.DBPath != "/elsewhere/library.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Volume != 0.25 {
		t.Errorf("Volume = %v", cfg.Volume)
	}
	if cfg.DeviceTimeout != 10*time.Second {
		t.Errorf("DeviceTimeout = %v", cfg.DeviceTimeout)
	}
	if cfg.StallTimeout != 750*time.Millisecond {
		t.Errorf("StallTimeout = %v", cfg.StallTimeout)
	}
	if cfg.PlayedThreshold != 0.5 {
		t.Errorf("PlayedThreshold = %v", cfg.PlayedThreshold)
	}
	if cfg.ScanWorkers != 8 {
		t.Errorf("ScanWorkers = %d", cfg.ScanWorkers)
	}
	if cfg.LogLevel != "debug" || !cfg.LogConsole {
		t.Errorf("logging = %q/%v", cfg.LogLevel, cfg.LogConsole)
	}
}

func TestLoadClampsBadValues(t *testing.T) {
	t.Setenv("TONEARM_DATA_DIR", t.TempDir())
	t.Setenv("TONEARM_VOLUME", "3.5")
	t.Setenv("TONEARM_PLAYED_THRESHOLD", "1.5")
	t.Setenv("TONEARM_SCAN_WORKERS", "-2")

	cfg := Load()
	if cfg.Volume != 1 {
		t.Errorf("Volume = %v, want clamped to 1", cfg.Volume)
	}
	if cfg.PlayedThreshold != 0 {
		t.Errorf("PlayedThreshold = %v, want reset to 0", cfg.PlayedThreshold)
	}
	if cfg.ScanWorkers != 1 {
		t.Errorf("ScanWorkers = %d, want floor of 1", cfg.ScanWorkers)
	}
}

func TestEnsureDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "tonearm")
	t.Setenv("TONEARM_DATA_DIR", dir)

	cfg := Load()
	if err := cfg.EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir: %v", err)
	}
}
