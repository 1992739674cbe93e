package config

import (
	"testing"
	"time"
)

func TestLoadRateLimitConfigDefaults(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_BOOKING_CAPACITY", "3")

	c := LoadRateLimitConfig()
	if c.Capacity != 60 || c.RefillInterval != time.Second {
		t.Fatalf("general bucket = %+v", c)
	}
	if c.TTL != 5*time.Second {
		t.Fatalf("TTL must be raised to 5 refill intervals, got %s", c.TTL)
	}
	b := c.Booking()
	if b.Capacity != 3 || b.RefillInterval != time.Minute || b.KeyStrategy != "ip_route" {
		t.Fatalf("booking bucket = %+v", b)
	}
	if b.Prefix != "rl:booking" {
		t.Fatalf("booking prefix = %q", b.Prefix)
	}
	if b.TTL < 5*time.Minute {
		t.Fatalf("booking TTL = %s", b.TTL)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_BOOL", "off")
	t.Setenv("X_INT", "nope")
	t.Setenv("X_DUR", "250ms")
	if envBool("X_BOOL", true) {
		t.Fatal("off must be false")
	}
	if envInt("X_INT", 7) != 7 {
		t.Fatal("bad int must fall back")
	}
	if envDur("X_DUR", 0) != 250*time.Millisecond {
		t.Fatal("duration parse")
	}
}

func TestLoadMailAndTelemetry(t *testing.T) {
	t.Setenv("MAIL_DRIVER", "smtp")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("OTEL_SAMPLING_RATIO", "2")
	m := LoadMailConfig()
	if m.Driver != "smtp" || m.SMTPPort != 2525 {
		t.Fatalf("mail = %+v", m)
	}
	tc := LoadTelemetryConfig("booking-api")
	if tc.SampleRatio != 1 {
		t.Fatalf("out of range ratio must be ignored, got %v", tc.SampleRatio)
	}
	if tc.ServiceName == "" {
		t.Fatal("service name")
	}
}

func TestCacheConfigMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head ,")
	c := LoadCacheConfig()
	if !c.Methods["GET"] || !c.Methods["HEAD"] || len(c.Methods) != 2 {
		t.Fatalf("methods = %v", c.Methods)
	}
}
