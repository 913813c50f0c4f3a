package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Raster engines selectable with RASTER_ENGINE.
const (
	EngineMemory = "memory"
	EngineRemote = "remote"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Analysis settings.
	AnalysisTimeout     time.Duration
	AnalysisConcurrency int
	MaxSamples          float64
	CatalogPath         string

	// Raster platform session.
	RasterEngine     string
	RasterAPIURL     string
	RasterAPITimeout time.Duration
	RasterFixtures   string

	// Report publishing.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaReportTopic string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("ANALYSIS_TIMEOUT", "60s")
	v.SetDefault("ANALYSIS_CONCURRENCY", 0)
	v.SetDefault("MAX_SAMPLES", 1e8)
	v.SetDefault("CATALOG_PATH", "")
	v.SetDefault("RASTER_ENGINE", EngineMemory)
	v.SetDefault("RASTER_API_URL", "")
	v.SetDefault("RASTER_API_TIMEOUT", "30s")
	v.SetDefault("RASTER_FIXTURES", "")
	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_REPORT_TOPIC", "ecosystem-analysis-reports")
	v.SetDefault("MAPBOX_TOKEN", "")
	v.SetDefault("MAPBOX_TIMEOUT", "5s")
	v.SetDefault("MAPBOX_CACHE_SIZE", 1000)
	return v
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	v := newViper()

	shutdownTimeout, err := positiveDuration(v, "SHUTDOWN_TIMEOUT")
	if err != nil {
		return nil, err
	}
	analysisTimeout, err := positiveDuration(v, "ANALYSIS_TIMEOUT")
	if err != nil {
		return nil, err
	}
	rasterTimeout, err := positiveDuration(v, "RASTER_API_TIMEOUT")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := positiveDuration(v, "MAPBOX_TIMEOUT")
	if err != nil {
		return nil, err
	}

	mapboxToken := v.GetString("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if s := strings.TrimSpace(v.GetString("MAPBOX_ENABLED")); s != "" {
		if mapboxEnabled, err = strconv.ParseBool(s); err != nil {
			return nil, fmt.Errorf("invalid MAPBOX_ENABLED %q", s)
		}
	}

	cfg := &Config{
		HTTPAddr:        v.GetString("HTTP_ADDR"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFormat:       v.GetString("LOG_FORMAT"),
		ShutdownTimeout: shutdownTimeout,

		AnalysisTimeout:     analysisTimeout,
		AnalysisConcurrency: v.GetInt("ANALYSIS_CONCURRENCY"),
		MaxSamples:          v.GetFloat64("MAX_SAMPLES"),
		CatalogPath:         v.GetString("CATALOG_PATH"),

		RasterEngine:     strings.ToLower(v.GetString("RASTER_ENGINE")),
		RasterAPIURL:     strings.TrimRight(v.GetString("RASTER_API_URL"), "/"),
		RasterAPITimeout: rasterTimeout,
		RasterFixtures:   v.GetString("RASTER_FIXTURES"),

		KafkaEnabled:     v.GetBool("KAFKA_ENABLED"),
		KafkaBrokers:     parseBrokers(v.GetString("KAFKA_BROKERS")),
		KafkaReportTopic: v.GetString("KAFKA_REPORT_TOPIC"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: v.GetInt("MAPBOX_CACHE_SIZE"),
	}

	if cfg.MaxSamples <= 0 {
		return nil, errors.New("invalid MAX_SAMPLES")
	}
	if cfg.AnalysisConcurrency < 0 {
		return nil, errors.New("invalid ANALYSIS_CONCURRENCY")
	}
	if cfg.MapboxCacheSize <= 0 {
		cfg.MapboxCacheSize = 1000
	}
	switch cfg.RasterEngine {
	case EngineMemory:
	case EngineRemote:
		if cfg.RasterAPIURL == "" {
			return nil, errors.New("RASTER_ENGINE is remote but RASTER_API_URL is not set")
		}
	default:
		return nil, fmt.Errorf("invalid RASTER_ENGINE %q", cfg.RasterEngine)
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaReportTopic == "" {
			return nil, errors.New("KAFKA_REPORT_TOPIC is required")
		}
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

func positiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
