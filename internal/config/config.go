package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	Port            string
	MongoURI        string
	DBName          string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RequestTimeout  time.Duration
	TracingExporter string

	// Pricing and inventory rules.
	FreeDeliveryThreshold float64
	DeliveryFee           float64
	LowStockThreshold     int

	// Optional collaborators; empty disables them.
	RedisURL       string
	IdempotencyTTL time.Duration
	KafkaBrokers   []string
	KafkaTopic     string
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = FromEnv()
}

// FromEnv reads the configuration without touching .env files.
func FromEnv() Config {
	return Config{
		Port:            getEnvOrDefault("PORT", "8080"),
		MongoURI:        getEnvOrDefault("MONGO_URI", ""),
		DBName:          getEnvOrDefault("DB_NAME", "lpgstore"),
		JWTSecret:       getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL:  getDurationEnv("ACCESS_TOKEN_TTL", 60, time.Minute),
		RequestTimeout:  getDurationEnv("REQUEST_TIMEOUT", 5, time.Second),
		TracingExporter: getEnvOrDefault("TRACING_EXPORTER", "none"),

		FreeDeliveryThreshold: getFloatEnv("FREE_DELIVERY_THRESHOLD", 5000),
		DeliveryFee:           getFloatEnv("DELIVERY_FEE", 500),
		LowStockThreshold:     getIntEnv("LOW_STOCK_THRESHOLD", 5),

		RedisURL:       getEnvOrDefault("REDIS_URL", ""),
		IdempotencyTTL: getDurationEnv("IDEMPOTENCY_TTL", 24, time.Hour),
		KafkaBrokers:   getListEnv("KAFKA_BROKERS"),
		KafkaTopic:     getEnvOrDefault("KAFKA_ORDER_TOPIC", "lpg.orders"),
	}
}
