package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load with defaults failed: %v", err)
	}
	if cfg.Controller.TotalCores != 4 {
		t.Errorf("expected 4 cores by default, got %d", cfg.Controller.TotalCores)
	}
	if cfg.Controller.HighWatermark != 90.0 || cfg.Controller.LowWatermark != 50.0 {
		t.Errorf("unexpected default watermarks: %+v", cfg.Controller)
	}
	if len(cfg.Controller.Jobs) != 7 {
		t.Errorf("expected the 7 canonical jobs, got %v", cfg.Controller.Jobs)
	}
	if cfg.Service.ProcessName != "memcached" {
		t.Errorf("expected memcached, got %q", cfg.Service.ProcessName)
	}
	names, err := cfg.Controller.JobNames()
	if err != nil {
		t.Fatalf("default job list must validate: %v", err)
	}
	if names[0] != domain.JobBlackscholes {
		t.Errorf("unexpected first job: %s", names[0])
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
controller:
  tick_interval: 1s
  high_watermark: 80
  low_watermark: 40
  eviction_threshold: 92
  jobs: ["canneal", "dedup"]
service:
  process_name: memcached
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Controller.HighWatermark != 80 {
		t.Errorf("expected high watermark 80, got %.1f", cfg.Controller.HighWatermark)
	}
	if len(cfg.Controller.Jobs) != 2 {
		t.Errorf("expected 2 jobs, got %v", cfg.Controller.Jobs)
	}
	// Untouched sections keep their defaults.
	if cfg.Events.Path != "scheduler.log" {
		t.Errorf("expected default events path, got %q", cfg.Events.Path)
	}
}

func TestValidate_Rejections(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		return cfg
	}

	cfg := base()
	cfg.Controller.SharedCore = cfg.Controller.ServiceCore
	if err := cfg.Validate(); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("shared==service core must be rejected, got %v", err)
	}

	cfg = base()
	cfg.Controller.LowWatermark = 95
	if err := cfg.Validate(); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("low>=high watermark must be rejected, got %v", err)
	}

	cfg = base()
	cfg.Controller.EvictionThreshold = 70
	if err := cfg.Validate(); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("eviction below high watermark must be rejected, got %v", err)
	}

	cfg = base()
	cfg.Controller.Jobs = []string{"canneal", "not-a-job"}
	if err := cfg.Validate(); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("unknown job must be rejected, got %v", err)
	}
}
