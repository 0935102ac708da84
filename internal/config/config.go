package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	ServerPort  string
	Environment string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis configuration
	RedisAddress string

	// JWT configuration
	JWTSecret string
	TokenTTL  time.Duration

	// Collaboration settings
	CursorSweepInterval  time.Duration
	CursorStaleThreshold time.Duration
	PersistWorkers       int

	FrontendAddress string
}

// Load reads configuration from environment variables (and .env if present).
func Load() *Config {
	// Find .env file
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// Try to find .env in parent directories
		envPath = filepath.Join("..", ".env")
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			envPath = filepath.Join("..", "..", ".env")
		}
	}

	// Load .env file if it exists
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			log.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "collab-editor-dev-secret"
		log.Println("JWT_SECRET not set, using development secret")
	}

	return &Config{
		ServerPort:           getEnv("PORT", "8080"),
		Environment:          getEnv("ENV", "development"),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getEnv("DB_PORT", "5432"),
		DBUser:               getEnv("DB_USER", "postgres"),
		DBPassword:           getEnv("DB_PASSWORD", "postgres"),
		DBName:               getEnv("DB_NAME", "collab_editor"),
		RedisAddress:         getEnv("REDIS_ADDRESS", "localhost:6379"),
		JWTSecret:            jwtSecret,
		TokenTTL:             getEnvDuration("TOKEN_TTL", 24*time.Hour),
		CursorSweepInterval:  getEnvDuration("CURSOR_SWEEP_INTERVAL", 10*time.Second),
		CursorStaleThreshold: getEnvDuration("CURSOR_STALE_THRESHOLD", 30*time.Second),
		PersistWorkers:       getEnvInt("PERSIST_WORKERS", 4),
		FrontendAddress:      getEnv("FRONTEND_ADDRESS", "http://localhost:5173"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid value for %s, using default", key)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid value for %s, using default", key)
		return defaultValue
	}
	return d
}
