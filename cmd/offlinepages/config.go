package main

import (
	"fmt"
	"time"

	"github.com/lucasew/offlinepages/internal/app"
	"github.com/lucasew/offlinepages/internal/eviction"
	"github.com/lucasew/offlinepages/internal/eviction/policy"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	defaultClearInterval     = eviction.DefaultConfig().ClearInterval
	defaultRemoveGracePeriod = eviction.DefaultConfig().RemoveGracePeriod
)

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q: %v", key, err))
	}
}

// policyConfig is a namespace policy as written in the config file:
//
//	policies:
//	  last_n:
//	    page_limit: 20
//	    expiration_period: 48h
type policyConfig struct {
	PageLimit        int           `mapstructure:"page_limit"`
	ExpirationPeriod time.Duration `mapstructure:"expiration_period"`
}

func (p policyConfig) lifetime() eviction.LifetimePolicy {
	return eviction.LifetimePolicy{PageLimit: p.PageLimit, ExpirationPeriod: p.ExpirationPeriod}
}

// loadPolicies reads default_policy and policies from the config.
func loadPolicies() (eviction.LifetimePolicy, map[string]eviction.LifetimePolicy, error) {
	fallback := policy.DefaultPolicy
	if viper.IsSet("default_policy") {
		var pc policyConfig
		if err := viper.UnmarshalKey("default_policy", &pc); err != nil {
			return fallback, nil, fmt.Errorf("invalid default_policy: %w", err)
		}
		fallback = pc.lifetime()
	}

	var raw map[string]policyConfig
	if err := viper.UnmarshalKey("policies", &raw); err != nil {
		return fallback, nil, fmt.Errorf("invalid policies: %w", err)
	}
	overrides := make(map[string]eviction.LifetimePolicy, len(raw))
	for ns, pc := range raw {
		if pc.PageLimit < 0 || pc.ExpirationPeriod < 0 {
			return fallback, nil, fmt.Errorf("invalid policy for namespace %q: negative values", ns)
		}
		overrides[ns] = pc.lifetime()
	}
	return fallback, overrides, nil
}

func engineConfig() (app.Config, error) {
	fallback, policies, err := loadPolicies()
	if err != nil {
		return app.Config{}, err
	}
	return app.Config{
		DataDir:    viper.GetString("data-dir"),
		DBPath:     viper.GetString("db"),
		ArchiveDir: viper.GetString("archive-dir"),
		Eviction: eviction.Config{
			StorageLimitFraction:   viper.GetFloat64("storage-limit-fraction"),
			ClearThresholdFraction: viper.GetFloat64("clear-threshold-fraction"),
			ClearInterval:          viper.GetDuration("clear-interval"),
			RemoveGracePeriod:      viper.GetDuration("remove-grace-period"),
		},
		Schedule:         viper.GetString("schedule"),
		MetricsNamespace: viper.GetString("metrics-namespace"),
		DefaultPolicy:    &fallback,
		Policies:         policies,
	}, nil
}
