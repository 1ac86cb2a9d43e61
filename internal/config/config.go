package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the LexFuse server.
type Config struct {
	Port      int
	Version   string
	Engine    EngineConfig
	Database  DatabaseConfig
	Registry  RegistryConfig
	Telemetry TelemetryConfig
}

// EngineConfig tunes the dispatcher, extractor, and scorer.
type EngineConfig struct {
	// BackendTimeout bounds each backend task independently.
	BackendTimeout time.Duration

	// MaxHeadingWords is the extractor's heading length guard.
	MaxHeadingWords int

	// Scorer weights. Normalized at use; they need not sum to 1.
	WeightLengthFit float64
	WeightDensity   float64
	WeightQuality   float64
}

type DatabaseConfig struct {
	// Path to the SQLite file for the generation audit log.
	// Empty selects the in-memory store.
	Path string
}

type RegistryConfig struct {
	// Optional YAML overlay files for backend profiles and document types.
	ProfilesFile string
	DocTypesFile string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("LEXFUSE_PORT", 8080),
		Version: envStr("LEXFUSE_VERSION", "0.4.0"),
		Engine: EngineConfig{
			BackendTimeout:  envDur("LEXFUSE_BACKEND_TIMEOUT", 60*time.Second),
			MaxHeadingWords: envInt("LEXFUSE_MAX_HEADING_WORDS", 12),
			WeightLengthFit: envFloat("LEXFUSE_WEIGHT_LENGTH", 0.4),
			WeightDensity:   envFloat("LEXFUSE_WEIGHT_DENSITY", 0.3),
			WeightQuality:   envFloat("LEXFUSE_WEIGHT_QUALITY", 0.3),
		},
		Database: DatabaseConfig{
			Path: envStr("LEXFUSE_DB_PATH", ""),
		},
		Registry: RegistryConfig{
			ProfilesFile: envStr("LEXFUSE_PROFILES_FILE", ""),
			DocTypesFile: envStr("LEXFUSE_DOCTYPES_FILE", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "lexfuse"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
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

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
