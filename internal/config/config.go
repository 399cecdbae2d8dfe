package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Gateway  GatewayConfig
	Auth     AuthConfig
	Limits   LimitsConfig
}

type ServerConfig struct {
	Port        string
	Environment string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	SSL      bool
	DB       int
}

type DatabaseConfig struct {
	URL string
}

type GatewayConfig struct {
	Address  string
	Password string
	Timeout  time.Duration
}

type AuthConfig struct {
	JWTSecret      string
	IdentitySecret string
}

type LimitsConfig struct {
	StoreTimeout time.Duration
	TierCacheTTL time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8000"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: os.Getenv("REDIS_PASSWORD"),
			SSL:      getEnvBool("REDIS_SSL", false),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Gateway: GatewayConfig{
			Address:  os.Getenv("GATEWAY_ADDRESS"),
			Password: os.Getenv("GATEWAY_PASSWORD"),
			Timeout:  10 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret:      os.Getenv("JWT_SECRET"),
			IdentitySecret: os.Getenv("IDENTITY_VERIFICATION_SECRET"),
		},
		Limits: LimitsConfig{
			StoreTimeout: getEnvDuration("RATELIMIT_STORE_TIMEOUT", 200*time.Millisecond),
			TierCacheTTL: getEnvDuration("TIER_CACHE_TTL", 60*time.Second),
		},
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
