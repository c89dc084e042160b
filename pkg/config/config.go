package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server          ServerConfig
	Log             LogConfig
	GraphAPI        GraphAPIConfig
	Simulation      SimulationConfig
	RateLimit       RateLimitConfig
	Influx          InfluxConfig
	SQLite          SQLiteConfig
	Telemetry       TelemetryConfig
	TelemetryWorker TelemetryWorkerConfig
}

type ServerConfig struct {
	Port int
}

type LogConfig struct {
	Level  string
	Format string
}

type GraphAPIConfig struct {
	BaseURL   string
	TimeoutMs int
}

type SimulationConfig struct {
	DefaultLatencyMetric string
	MaxTraversalDepth    int
	ScalingModel         string
	ScalingAlpha         float64
	MinLatencyFactor     float64
	TimeoutMs            int
	MaxPathsReturned     int
}

type RateLimitConfig struct {
	WindowMs    int
	MaxRequests int
}

type InfluxConfig struct {
	Host     string
	Token    string
	Database string
}

type SQLiteConfig struct {
	DBPath string
}

type TelemetryConfig struct {
	Enabled bool
}

type TelemetryWorkerConfig struct {
	Enabled        bool
	PollIntervalMs int
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("PORT", 5000),
		},
		Log: LogConfig{
			Level:  env("LOG_LEVEL", "info"),
			Format: env("LOG_FORMAT", "text"),
		},
		GraphAPI: GraphAPIConfig{
			BaseURL:   graphBaseURL(),
			TimeoutMs: envInt("GRAPH_API_TIMEOUT_MS", 5000),
		},
		Simulation: SimulationConfig{
			DefaultLatencyMetric: env("DEFAULT_LATENCY_METRIC", "p95"),
			MaxTraversalDepth:    envInt("MAX_TRAVERSAL_DEPTH", 2),
			ScalingModel:         env("SCALING_MODEL", "bounded_sqrt"),
			ScalingAlpha:         envFloat("SCALING_ALPHA", 0.5),
			MinLatencyFactor:     envFloat("MIN_LATENCY_FACTOR", 0.6),
			TimeoutMs:            envInt("SIMULATION_TIMEOUT_MS", 8000),
			MaxPathsReturned:     envInt("MAX_PATHS_RETURNED", 10),
		},
		RateLimit: RateLimitConfig{
			WindowMs:    envInt("RATE_LIMIT_WINDOW_MS", 60000),
			MaxRequests: envInt("RATE_LIMIT_MAX", 60),
		},
		Influx: InfluxConfig{
			Host:     env("INFLUX_HOST", ""),
			Token:    env("INFLUX_TOKEN", ""),
			Database: env("INFLUX_DATABASE", ""),
		},
		SQLite: SQLiteConfig{
			DBPath: env("SQLITE_DB_PATH", "./data/decisions.db"),
		},
		Telemetry: TelemetryConfig{
			Enabled: env("TELEMETRY_ENABLED", "true") != "false",
		},
		TelemetryWorker: TelemetryWorkerConfig{
			Enabled:        env("TELEMETRY_WORKER_ENABLED", "true") != "false",
			PollIntervalMs: envInt("TELEMETRY_POLL_INTERVAL_MS", 60000),
		},
	}

	if cfg.Simulation.MaxTraversalDepth < 1 || cfg.Simulation.MaxTraversalDepth > 3 {
		return nil, fmt.Errorf("MAX_TRAVERSAL_DEPTH must be 1, 2, or 3; got %d", cfg.Simulation.MaxTraversalDepth)
	}
	if cfg.Simulation.ScalingAlpha < 0 || cfg.Simulation.ScalingAlpha > 1 {
		return nil, fmt.Errorf("SCALING_ALPHA must be within [0,1]; got %v", cfg.Simulation.ScalingAlpha)
	}

	return cfg, nil
}

// ValidateEnv checks the variables that have no usable fallback.
func ValidateEnv() error {
	if os.Getenv("GRAPH_ENGINE_BASE_URL") == "" && os.Getenv("SERVICE_GRAPH_ENGINE_URL") == "" {
		return fmt.Errorf("GRAPH_ENGINE_BASE_URL (or SERVICE_GRAPH_ENGINE_URL) is required")
	}
	return nil
}

func graphBaseURL() string {
	if v := os.Getenv("GRAPH_ENGINE_BASE_URL"); v != "" {
		return v
	}
	if v := os.Getenv("SERVICE_GRAPH_ENGINE_URL"); v != "" {
		return v
	}
	return "http://service-graph-engine:3000"
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
