package config

import (
	"testing"
	"time"
)

func TestLoad_DefaultsWithMemoryStore(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "k")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("PLATFORM_ADMIN_EMAILS", " Root@Deli.com, ,ops@deli.com")
	t.Setenv("BASE_URL", "https://app.example.com/")

	cfg := Load()
	if cfg.StoreDriver != StoreMemory {
		t.Fatalf("StoreDriver = %q", cfg.StoreDriver)
	}
	if cfg.SessionTTL != 7*24*time.Hour || cfg.OTPTTL != 5*time.Minute ||
		cfg.ResetTTL != 30*time.Minute || cfg.InviteTTL != 7*24*time.Hour {
		t.Errorf("ttl defaults = %+v", cfg)
	}
	if cfg.BcryptCost != 10 || !cfg.CookieSecure {
		t.Errorf("bcrypt=%d secure=%v", cfg.BcryptCost, cfg.CookieSecure)
	}
	if cfg.BaseURL != "https://app.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if len(cfg.PlatformAdminEmails) != 2 || cfg.PlatformAdminEmails[0] != "root@deli.com" {
		t.Errorf("PlatformAdminEmails = %v", cfg.PlatformAdminEmails)
	}
	if cfg.IsProd() {
		t.Error("test env is not prod")
	}
}

func TestLoadRateLimitConfig_Normalizes(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_ENABLED", "off")

	c := LoadRateLimitConfig()
	if c.Enabled {
		t.Error("enabled should be false")
	}
	if c.Capacity != 1 {
		t.Errorf("Capacity = %d", c.Capacity)
	}
	if c.TTL != 10*time.Second {
		t.Errorf("TTL = %v, want 5*interval", c.TTL)
	}
}

func TestLoadFeatureCacheConfig(t *testing.T) {
	t.Setenv("FEATURE_CACHE_TTL", "-5s")
	c := LoadFeatureCacheConfig()
	if !c.Enabled || c.TTL != time.Minute || c.Prefix != "features" {
		t.Errorf("cfg = %+v", c)
	}
}

func TestRedisOptions(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_DB", "3")
	o := RedisOptions()
	if o.Addr != "cache:6380" || o.DB != 3 || o.TLSConfig != nil {
		t.Errorf("opts = %+v", o)
	}
	t.Setenv("REDIS_HOST", "h")
	t.Setenv("REDIS_PORT", "1")
	t.Setenv("REDIS_TLS", "1")
	o = RedisOptions()
	if o.Addr != "h:1" || o.TLSConfig == nil {
		t.Errorf("opts = %+v", o)
	}
}

func TestSplitList(t *testing.T) {
	if got := splitList(""); got != nil {
		t.Errorf("splitList(\"\") = %v", got)
	}
}
