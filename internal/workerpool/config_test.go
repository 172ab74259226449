package workerpool

import (
	"context"
	"testing"
)

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("WP_NAME", "sqs")
	t.Setenv("WP_WORKERS", "8")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Name != "sqs" || cfg.Workers != 8 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestNew_ZeroValueDefaults(t *testing.T) {
	p := New(Config{}, func(context.Context, int) {})
	defer p.Close()

	if p.Workers() != DefaultWorkers {
		t.Fatalf("Workers = %d, want %d", p.Workers(), DefaultWorkers)
	}
	if p.cfg.Name != "default" {
		t.Fatalf("Name = %q, want default", p.cfg.Name)
	}
}
