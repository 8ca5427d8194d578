package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lucasew/offlinepages/internal/eviction"
	"github.com/lucasew/offlinepages/internal/eviction/policy"
	"github.com/spf13/viper"
)

func loadTestConfig(t *testing.T, content string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "offlinepages.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() failed: %v", err)
	}
}

func TestLoadPolicies(t *testing.T) {
	t.Run("Overrides", func(t *testing.T) {
		loadTestConfig(t, `
default_policy:
  page_limit: 0
  expiration_period: 0s
policies:
  last_n:
    page_limit: 5
    expiration_period: 36h
  reading_list:
    expiration_period: 168h
`)
		fallback, policies, err := loadPolicies()
		if err != nil {
			t.Fatalf("loadPolicies() failed: %v", err)
		}
		if fallback != (eviction.LifetimePolicy{}) {
			t.Errorf("expected explicit unlimited fallback, got %+v", fallback)
		}
		if got := policies["last_n"]; got.PageLimit != 5 || got.ExpirationPeriod != 36*time.Hour {
			t.Errorf("unexpected last_n policy %+v", got)
		}
		if got := policies["reading_list"]; got.PageLimit != eviction.UnlimitedPages || got.ExpirationPeriod != 7*24*time.Hour {
			t.Errorf("unexpected reading_list policy %+v", got)
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		loadTestConfig(t, "data-dir: /tmp/pages\n")
		fallback, policies, err := loadPolicies()
		if err != nil {
			t.Fatalf("loadPolicies() failed: %v", err)
		}
		if fallback != policy.DefaultPolicy {
			t.Errorf("expected default fallback, got %+v", fallback)
		}
		if len(policies) != 0 {
			t.Errorf("expected no overrides, got %v", policies)
		}
	})

	t.Run("Negative", func(t *testing.T) {
		loadTestConfig(t, `
policies:
  last_n:
    page_limit: -1
`)
		if _, _, err := loadPolicies(); err == nil {
			t.Error("expected error for negative page limit")
		}
	})
}

func TestEngineConfig(t *testing.T) {
	loadTestConfig(t, `
data-dir: /var/lib/offlinepages
storage-limit-fraction: 0.5
clear-threshold-fraction: 0.2
clear-interval: 5m
remove-grace-period: 72h
`)
	cfg, err := engineConfig()
	if err != nil {
		t.Fatalf("engineConfig() failed: %v", err)
	}
	want := eviction.Config{
		StorageLimitFraction:   0.5,
		ClearThresholdFraction: 0.2,
		ClearInterval:          5 * time.Minute,
		RemoveGracePeriod:      72 * time.Hour,
	}
	if cfg.Eviction != want {
		t.Errorf("expected %+v, got %+v", want, cfg.Eviction)
	}
	if cfg.DataDir != "/var/lib/offlinepages" {
		t.Errorf("unexpected data dir %q", cfg.DataDir)
	}
	if cfg.DefaultPolicy == nil || *cfg.DefaultPolicy != policy.DefaultPolicy {
		t.Errorf("expected default fallback policy, got %v", cfg.DefaultPolicy)
	}
}
