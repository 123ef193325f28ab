// Package config loads runtime configuration from environment variables.
// A .env file is honored when present; required variables without a value
// abort startup.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the service.
type Config struct {
	Env  string // "dev" or "prod"
	Port string // HTTP port to bind

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AMQPURL string // RabbitMQ url; empty disables notification dispatch

	SessionSecret string // signs session tokens, must be stable across restarts
	BcryptCost    int

	RegularCapacity  int // regular pool spaces per day
	OverflowCapacity int // overflow pool spaces per day, keys-handed-over only

	// Seed credentials for the first admin account; used only when the
	// user set is empty.
	AdminUsername string
	AdminPassword string

	LogLevel string
}

// Load reads the environment and returns a Config.  Missing required
// variables terminate the process with a fatal log message.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:  getenv("APP_ENV", "dev"),
		Port: getenv("APP_PORT", "8080"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       intenv("REDIS_DB", 0),

		AMQPURL: os.Getenv("AMQP_URL"),

		SessionSecret: must("SESSION_SECRET"),
		BcryptCost:    intenv("BCRYPT_COST", 10),

		RegularCapacity:  mustInt("REGULAR_CAPACITY"),
		OverflowCapacity: mustInt("OVERFLOW_CAPACITY"),

		AdminUsername: getenv("ADMIN_USERNAME", "admin"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		LogLevel: getenv("LOG_LEVEL", "info"),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must but converts to an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intenv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}
