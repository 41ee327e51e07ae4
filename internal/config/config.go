// Package config loads evaluator settings from a YAML file, a .env file and
// OCR_EVAL_* environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/ocr-robustness/internal/detection"
	"github.com/ironsheep/ocr-robustness/internal/imaging"
	"github.com/ironsheep/ocr-robustness/internal/perturb"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OCR_EVAL_"

// Config holds every setting of an evaluation run.
type Config struct {
	// SourceDir holds the labeled source images.
	SourceDir string `yaml:"source_dir"`
	// VariantDir receives the perturbed variants.
	VariantDir string `yaml:"variant_dir"`
	// VariantBaseURL prefixes variant keys in image URIs. Defaults to
	// file:// URLs of VariantDir.
	VariantBaseURL string `yaml:"variant_base_url"`
	// MetricsDir receives metrics.json.
	MetricsDir string `yaml:"metrics_dir"`
	// DatabasePath is the SQLite record store; empty keeps records in memory.
	DatabasePath string `yaml:"database_path"`

	OCRLanguage string `yaml:"ocr_language"`
	JPEGQuality int    `yaml:"jpeg_quality"`
	// Concurrency bounds how many source images are processed at once.
	Concurrency int `yaml:"concurrency"`
	// NoiseSeed makes noise variants repeatable when set.
	NoiseSeed *uint64 `yaml:"noise_seed"`
	LogLevel  string  `yaml:"log_level"`

	// Operations restricts the plan to these operation keys. Empty means
	// the full default battery.
	Operations []string `yaml:"operations"`

	// GroundTruth replaces the bundled validation dataset when non-empty.
	GroundTruth map[string]string `yaml:"ground_truth"`
	// GroundTruthFile is a YAML map of file name to text merged over
	// GroundTruth.
	GroundTruthFile string `yaml:"ground_truth_file"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		SourceDir:   "data/sources",
		VariantDir:  "data/variants",
		MetricsDir:  "data/metrics",
		OCRLanguage: "eng",
		JPEGQuality: imaging.DefaultJPEGQuality,
		Concurrency: 4,
		LogLevel:    "info",
	}
}

// Load builds the configuration for a run.
//
// A .env file in the working directory is loaded first if present; it never
// overrides variables already set. path may be empty to skip the YAML file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from OCR_EVAL_* variables looked up with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"SOURCE_DIR":        &c.SourceDir,
		"VARIANT_DIR":       &c.VariantDir,
		"VARIANT_BASE_URL":  &c.VariantBaseURL,
		"METRICS_DIR":       &c.MetricsDir,
		"DB":                &c.DatabasePath,
		"OCR_LANGUAGE":      &c.OCRLanguage,
		"LOG_LEVEL":         &c.LogLevel,
		"GROUND_TRUTH_FILE": &c.GroundTruthFile,
	}
	for name, field := range strs {
		if v := getenv(EnvPrefix + name); v != "" {
			*field = v
		}
	}

	ints := map[string]*int{
		"JPEG_QUALITY": &c.JPEGQuality,
		"CONCURRENCY":  &c.Concurrency,
	}
	for name, field := range ints {
		v := getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, name, v, err)
		}
		*field = n
	}

	if v := getenv(EnvPrefix + "NOISE_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sNOISE_SEED %q: %w", EnvPrefix, v, err)
		}
		c.NoiseSeed = &seed
	}
	if v := getenv(EnvPrefix + "OPERATIONS"); v != "" {
		c.Operations = strings.Split(v, ",")
	}
	return nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("invalid jpeg_quality %d: must be within 1-100", c.JPEGQuality)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("invalid concurrency %d: must be at least 1", c.Concurrency)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := c.Plan(); err != nil {
		return err
	}
	return nil
}

// Plan returns the perturbation plan selected by Operations.
func (c *Config) Plan() (*perturb.Plan, error) {
	if len(c.Operations) == 0 {
		return perturb.DefaultPlan(), nil
	}
	keys := make([]string, 0, len(c.Operations))
	for _, k := range c.Operations {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return perturb.PlanFromKeys(keys)
}

// LoadGroundTruth returns the ground-truth dataset for the run: the bundled
// dataset unless GroundTruth is set, with GroundTruthFile entries merged on
// top.
func (c *Config) LoadGroundTruth() (detection.GroundTruth, error) {
	gt := detection.DefaultGroundTruth()
	if len(c.GroundTruth) > 0 {
		gt = detection.GroundTruth(c.GroundTruth).Clone()
	}
	if c.GroundTruthFile == "" {
		return gt, nil
	}

	raw, err := os.ReadFile(c.GroundTruthFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read ground truth: %w", err)
	}
	var extra map[string]string
	if err := yaml.Unmarshal(raw, &extra); err != nil {
		return nil, fmt.Errorf("failed to parse ground truth %s: %w", c.GroundTruthFile, err)
	}
	for k, v := range extra {
		gt[k] = v
	}
	return gt, nil
}

// ParseLogLevel maps debug, info, warn and error to slog levels. An empty
// string is info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
}
