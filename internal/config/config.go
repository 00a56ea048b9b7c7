package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	ServerPort string
	Env        string

	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	RedisURL string

	JWTSecret string

	AccessTokenMaxAge  int // seconds
	RefreshTokenMaxAge int // seconds

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string

	DefaultAvatarURL string

	WorkerCount int
}

// LoadConfig reads configuration from the environment, with an optional .env file.
func LoadConfig() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		Env:        getEnv("ENV", "development"),

		Neo4jURI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:     getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", "password"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		AccessTokenMaxAge:  getEnvInt("ACCESS_TOKEN_MAX_AGE", 900),
		RefreshTokenMaxAge: getEnvInt("REFRESH_TOKEN_MAX_AGE", 2592000),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		DefaultAvatarURL: getEnv("DEFAULT_AVATAR_URL", ""),

		WorkerCount: getEnvInt("FEED_WORKER_COUNT", 2),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
// Development gets a static fallback secret so a bare checkout boots.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		if c.Env != "development" {
			return fmt.Errorf("JWT_SECRET is required")
		}
		c.JWTSecret = "dev-only-insecure-secret"
	}
	if c.Neo4jURI == "" {
		return fmt.Errorf("NEO4J_URI is required")
	}
	if c.AccessTokenMaxAge <= 0 || c.RefreshTokenMaxAge <= 0 {
		return fmt.Errorf("token max ages must be positive")
	}
	if c.WorkerCount < 1 {
		c.WorkerCount = 1
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
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
