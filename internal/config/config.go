// Package config loads CLI defaults from the environment and an optional .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds the defaults applied to every command.
type Config struct {
	UserID    string
	Lang      string
	Location  string
	Method    string
	Timeout   time.Duration
	Parallel  int
	Insecure  bool
	LogLevel  string
	Telemetry TelemetryConfig
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		UserID:   envStr("OCB_USER_ID", uuid.NewString()),
		Lang:     envStr("OCB_LANG", ""),
		Location: envStr("OCB_LOCATION", ""),
		Method:   strings.ToLower(envStr("OCB_METHOD", "get")),
		Timeout:  envDuration("OCB_TIMEOUT", 30*time.Second),
		Parallel: envInt("OCB_PARALLEL", 0),
		Insecure: envBool("OCB_INSECURE", false),
		LogLevel: envStr("OCB_LOG_LEVEL", ""),
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "ocb"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go durations ("45s") or plain seconds ("45").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if s, err := strconv.Atoi(v); err == nil {
		return time.Duration(s) * time.Second
	}
	return fallback
}
