package config_test

import (
	"os"
	"testing"

	"github.com/gatewatch/gatewatch/config"
)

func TestLoadConfigFromEnv(t *testing.T) {
	os.Setenv("ENV", "test")
	os.Setenv("GATEWATCH_SHARD_COUNT", "8")
	os.Setenv("GATEWATCH_CRITICAL_THRESHOLD", "0.8")
	defer func() {
		os.Unsetenv("ENV")
		os.Unsetenv("GATEWATCH_SHARD_COUNT")
		os.Unsetenv("GATEWATCH_CRITICAL_THRESHOLD")
	}()

	cfg := config.Load()
	if cfg.Env != "test" {
		t.Fatalf("expected ENV=test, got %s", cfg.Env)
	}
	if cfg.ShardCount != 8 {
		t.Fatalf("expected shard count 8, got %d", cfg.ShardCount)
	}
	if cfg.CriticalThreshold != 0.8 {
		t.Fatalf("expected critical threshold 0.8, got %v", cfg.CriticalThreshold)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	os.Unsetenv("GATEWATCH_MEDIUM_THRESHOLD")
	cfg := config.Load()
	if cfg.MediumThreshold != 0.35 {
		t.Fatalf("expected default medium threshold 0.35, got %v", cfg.MediumThreshold)
	}
	if cfg.TakedownMinClusterSize != 3 {
		t.Fatalf("expected default takedown cluster size 3, got %d", cfg.TakedownMinClusterSize)
	}
}
