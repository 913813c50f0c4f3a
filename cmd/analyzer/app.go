package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/adapter/kafka"
	"github.com/couchcryptid/ecosystem-analysis-service/internal/adapter/mapbox"
	"github.com/couchcryptid/ecosystem-analysis-service/internal/adapter/rasterapi"
	"github.com/couchcryptid/ecosystem-analysis-service/internal/config"
	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
	"github.com/couchcryptid/ecosystem-analysis-service/internal/observability"
	"github.com/couchcryptid/ecosystem-analysis-service/internal/pipeline"
	"github.com/couchcryptid/ecosystem-analysis-service/internal/raster"
)

// app holds the wired service and everything that must be closed with it.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	analyzer *pipeline.Analyzer
	writer   *kafka.Writer
}

// newApp loads configuration and the variable catalog and opens the raster
// platform session. withPublisher is false for one-shot CLI runs.
func newApp(withPublisher bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	vars, err := catalog.Build()
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}

	platform, err := newPlatform(cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics}
	opts := pipeline.Options{
		Variables:   vars,
		Timeout:     cfg.AnalysisTimeout,
		Concurrency: cfg.AnalysisConcurrency,
		MaxSamples:  cfg.MaxSamples,
		EVI:         catalog.EVI,
	}

	// Geocoding is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		opts.Geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	if withPublisher && cfg.KafkaEnabled {
		a.writer = kafka.NewWriter(cfg, logger)
		opts.Publisher = a.writer
		logger.Info("report publishing enabled", "topic", cfg.KafkaReportTopic, "brokers", cfg.KafkaBrokers)
	}

	a.analyzer, err = pipeline.NewAnalyzer(platform, opts, logger, metrics)
	if err != nil {
		opened := []io.Closer{platform}
		if a.writer != nil {
			opened = append(opened, a.writer)
		}
		return nil, errors.Join(err, closeAll(opened...))
	}
	logger.Info("analyzer ready", "engine", cfg.RasterEngine, "variables", len(vars), "timeout", cfg.AnalysisTimeout)
	return a, nil
}

func newPlatform(cfg *config.Config, logger *slog.Logger) (domain.RasterPlatform, error) {
	if cfg.RasterEngine == config.EngineRemote {
		logger.Info("using remote raster platform", "url", cfg.RasterAPIURL)
		return rasterapi.NewClient(cfg.RasterAPIURL, cfg.RasterAPITimeout, logger), nil
	}

	engine := raster.NewEngine()
	if cfg.RasterFixtures != "" {
		if err := engine.LoadFile(cfg.RasterFixtures); err != nil {
			return nil, err
		}
	}
	logger.Info("using in-memory raster engine", "fixtures", cfg.RasterFixtures, "collections", engine.Collections())
	return engine, nil
}

// closeAll closes every resource, even after one fails.
func closeAll(closers ...io.Closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases the platform session and the report writer.
func (a *app) Close() error {
	var errs []error
	if a.writer != nil {
		if err := a.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka writer: %w", err))
		}
	}
	if err := a.analyzer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close raster platform: %w", err))
	}
	return errors.Join(errs...)
}
