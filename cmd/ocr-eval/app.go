package main

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/ironsheep/ocr-robustness/internal/config"
	"github.com/ironsheep/ocr-robustness/internal/ocr"
	"github.com/ironsheep/ocr-robustness/internal/perturb"
	"github.com/ironsheep/ocr-robustness/internal/pipeline"
	"github.com/ironsheep/ocr-robustness/internal/store"
)

// app holds the wired components of one CLI invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	closers  []func() error
}

// newLogger writes text logs to stderr; stdout is reserved for the MCP
// protocol and command output.
func newLogger(level string) (*slog.Logger, error) {
	lvl, err := config.ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	cfg := a.cfg

	sources, err := store.NewFSObjects(cfg.SourceDir, "")
	if err != nil {
		return fmt.Errorf("failed to open source store: %w", err)
	}
	variants, err := store.NewFSObjects(cfg.VariantDir, cfg.VariantBaseURL)
	if err != nil {
		return fmt.Errorf("failed to open variant store: %w", err)
	}
	metricsStore, err := store.NewFSObjects(cfg.MetricsDir, "")
	if err != nil {
		return fmt.Errorf("failed to open metrics store: %w", err)
	}

	var (
		records       store.RecordStore
		preprocessing store.PreprocessingStore
	)
	if cfg.DatabasePath != "" {
		db, err := store.OpenSQLite(cfg.DatabasePath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)
		records, preprocessing = db, db
	} else {
		a.logger.Warn("no database configured, detection records are kept in memory")
		mem := store.NewMemoryRecords()
		records, preprocessing = mem, mem
	}

	plan, err := cfg.Plan()
	if err != nil {
		return err
	}
	groundTruth, err := cfg.LoadGroundTruth()
	if err != nil {
		return err
	}

	engineOpts := perturb.Options{
		Encoder: perturb.JPEGEncoder(cfg.JPEGQuality),
		Logger:  a.logger,
	}
	suffix := perturb.RandomSuffix
	if cfg.NoiseSeed != nil {
		engineOpts.Rand = perturb.SeededRand(*cfg.NoiseSeed)
		suffix = perturb.SeededSuffix(rand.New(rand.NewPCG(*cfg.NoiseSeed, 0)))
	}

	a.pipeline, err = pipeline.New(pipeline.Deps{
		Sources:       sources,
		Variants:      variants,
		Metrics:       metricsStore,
		Records:       records,
		Preprocessing: preprocessing,
		OCR:           ocr.NewTesseract(cfg.OCRLanguage),
		SourceBucket:  filepath.Base(sources.Root()),
		VariantBucket: filepath.Base(variants.Root()),
		Engine:        perturb.NewEngine(engineOpts),
		Plan:          plan,
		GroundTruth:   groundTruth,
		Suffix:        suffix,
		Concurrency:   cfg.Concurrency,
		Logger:        a.logger,
	})
	if err != nil {
		return err
	}

	a.logger.Debug("pipeline ready",
		"sources", sources.Root(), "variants", variants.Root(), "metrics", metricsStore.Root(),
		"database", cfg.DatabasePath, "operations", plan.Len(), "ocr_language", cfg.OCRLanguage)
	return nil
}

// Close releases the record store.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil && a.logger != nil {
			a.logger.Warn("failed to close resource", "error", err)
		}
	}
	a.closers = nil
}
