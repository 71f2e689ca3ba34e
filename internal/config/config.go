package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/cart-service/internal/catalog"
	"github.com/fjod/go_cart/cart-service/internal/reconcile"
	"github.com/fjod/go_cart/cart-service/internal/repository"
)

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPPort        int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Postgres      repository.Credentials
	RunMigrations bool

	CartTTL        time.Duration
	Reconcile      reconcile.Config
	CatalogBreaker catalog.BreakerConfig

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
}

func Load() Config {
	return Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPPort:        getEnvInt("HTTP_PORT", 8080),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		Postgres: repository.Credentials{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "cartdb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		RunMigrations: getEnvBool("DB_RUN_MIGRATIONS", true),

		CartTTL: getEnvDuration("CART_TTL", 7*24*time.Hour),

		Reconcile: reconcile.Config{
			Workers:   getEnvInt("RECONCILE_WORKERS", reconcile.DefaultWorkers),
			QueueSize: getEnvInt("RECONCILE_QUEUE_SIZE", reconcile.DefaultQueueSize),
			Timeout:   getEnvDuration("RECONCILE_TIMEOUT", reconcile.DefaultTimeout),
		},
		CatalogBreaker: catalog.BreakerConfig{
			Name:        "catalog-postgres",
			MaxFailures: uint32(getEnvInt("CATALOG_BREAKER_FAILURES", 5)),
			OpenTimeout: getEnvDuration("CATALOG_BREAKER_TIMEOUT", 30*time.Second),
		},

		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_ORDER_TOPIC", "order-placed"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "cart-service-consumer"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)

	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}

func getEnvBool(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// getEnvList splits a comma-separated value; empty means the feature is off.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
