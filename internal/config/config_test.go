package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "DB_NAME", "ACCESS_TOKEN_TTL", "FREE_DELIVERY_THRESHOLD",
		"DELIVERY_FEE", "LOW_STOCK_THRESHOLD", "KAFKA_BROKERS", "IDEMPOTENCY_TTL",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.FreeDeliveryThreshold != 5000 || cfg.DeliveryFee != 500 {
		t.Fatalf("unexpected pricing defaults: %+v", cfg)
	}
	if cfg.LowStockThreshold != 5 {
		t.Fatalf("expected low stock threshold 5, got %d", cfg.LowStockThreshold)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("expected 24h idempotency ttl, got %v", cfg.IdempotencyTTL)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("expected no kafka brokers, got %v", cfg.KafkaBrokers)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DELIVERY_FEE", "250.5")
	t.Setenv("ACCESS_TOKEN_TTL", "15")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv("LOW_STOCK_THRESHOLD", "not-a-number")

	cfg := FromEnv()
	if cfg.DeliveryFee != 250.5 {
		t.Fatalf("expected delivery fee 250.5, got %v", cfg.DeliveryFee)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected 15m ttl, got %v", cfg.AccessTokenTTL)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "a:9092" || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
	if cfg.LowStockThreshold != 5 {
		t.Fatalf("invalid value should fall back to default, got %d", cfg.LowStockThreshold)
	}
}

func TestValidateRequiresMongoAndSecret(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Fatal("expected error for empty config")
	}
	if err := (Config{MongoURI: "mongodb://x"}).Validate(); err == nil {
		t.Fatal("expected error for missing JWT secret")
	}
	if err := (Config{MongoURI: "mongodb://x", JWTSecret: "s"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
