package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort  string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	JWTSecret   string
	SwaggerHost string

	// MasterKey wraps data-encryption keys. Decoded once here; nil when the
	// environment variable is absent or malformed, which KeyVault turns into
	// a hard, operator-actionable failure before any record is written.
	MasterKey []byte
}

// Load builds Config from environment with sensible defaults.
func Load() *Config {
	masterKey, err := decodeMasterKey(os.Getenv("MASTER_ENCRYPTION_KEY"))
	if err != nil {
		// Startup continues so the operator sees a distinct error from the
		// vault endpoints instead of a crash loop; everything not touching
		// encryption still works.
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		masterKey = nil
	}

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		MySQLDSN:    getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/app?charset=utf8mb4&parseTime=True&loc=Local"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		RedisPass:   os.Getenv("REDIS_PASSWORD"),
		JWTSecret:   getEnv("JWT_SECRET", "change-me"),
		SwaggerHost: os.Getenv("SWAGGER_HOST"),
		MasterKey:   masterKey,
	}
}

// decodeMasterKey decodes the base64 master key and requires exactly 32 bytes.
func decodeMasterKey(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, fmt.Errorf("MASTER_ENCRYPTION_KEY is not set")
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("MASTER_ENCRYPTION_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("MASTER_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
