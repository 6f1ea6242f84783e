package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_PATH", "JWT_EXPIRES_DAYS", "NODE_ENV", "RANDOM_SEED", "REDIS_URL"} {
		t.Setenv(k, "")
	}
	c := Load()
	if c.Port != "5175" || c.DatabasePath != "./data/quiz.db" || c.JWTExpiresDays != 14 {
		t.Fatalf("defaults = %+v", c)
	}
	if c.Production || c.RandomSeed != 0 || c.RedisURL != "" {
		t.Fatalf("unexpected flags %+v", c)
	}
	if c.TokenTTL() != 14*24*time.Hour {
		t.Fatalf("ttl %v", c.TokenTTL())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("JWT_EXPIRES_DAYS", "2")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("RANDOM_SEED", "42")
	t.Setenv("LOG_PRETTY", "true")
	c := Load()
	if c.Port != "9000" || c.JWTExpiresDays != 2 || !c.Production || c.RandomSeed != 42 || !c.LogPretty {
		t.Fatalf("overrides = %+v", c)
	}
}

func TestLoadBadNumberFallsBack(t *testing.T) {
	t.Setenv("JWT_EXPIRES_DAYS", "soon")
	if c := Load(); c.JWTExpiresDays != 14 {
		t.Fatalf("days = %d", c.JWTExpiresDays)
	}
}
