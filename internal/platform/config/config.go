package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything cmd/server needs from the environment so main
// stays lean.
type Config struct {
	Addr          string
	JWTSigningKey string
	AdminToken    string

	// VaultAccount is the custody account the treasury debits on release.
	VaultAccount string

	// TreasuryBackend selects "memory" or "redis".
	TreasuryBackend string

	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig

	// AuditBuffer > 0 enables the async audit publisher with that buffer.
	AuditBuffer int

	// DevTokens exposes POST /dev/token for minting access tokens. Never
	// enable outside local development.
	DevTokens bool
}

// RedisConfig configures the optional Redis treasury backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the optional audit outbox store.
type PostgresConfig struct {
	URL string
}

// KafkaConfig configures the optional audit relay.
type KafkaConfig struct {
	Brokers    string
	AuditTopic string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:            getenv("VESTRY_ADDR", ":8080"),
		JWTSigningKey:   getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		AdminToken:      os.Getenv("ADMIN_TOKEN"),
		VaultAccount:    os.Getenv("VAULT_ACCOUNT"),
		TreasuryBackend: getenv("TREASURY_BACKEND", "memory"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getenvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getenvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Kafka: KafkaConfig{
			Brokers:    os.Getenv("KAFKA_BROKERS"),
			AuditTopic: getenv("KAFKA_AUDIT_TOPIC", "vestry.audit"),
		},
		AuditBuffer: getenvInt("AUDIT_BUFFER", 0),
		DevTokens:   os.Getenv("VESTRY_DEV_TOKENS") == "true",
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
