package config

import "time"

// FeatureCacheConfig controls the Redis cache in front of tenant feature
// maps.  When Enabled is false or no Redis client is configured, feature
// lookups always go to the database.
type FeatureCacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadFeatureCacheConfig reads FEATURE_CACHE_* variables.  Defaults are used
// when variables are not set.
func LoadFeatureCacheConfig() FeatureCacheConfig {
	cfg := FeatureCacheConfig{
		Enabled: envBool("FEATURE_CACHE_ENABLED", true),
		TTL:     envDur("FEATURE_CACHE_TTL", 60*time.Second),
		Prefix:  envStr("FEATURE_CACHE_PREFIX", "features"),
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 60 * time.Second
	}
	return cfg
}
