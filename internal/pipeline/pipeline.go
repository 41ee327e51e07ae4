package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/ocr-robustness/internal/detection"
	"github.com/ironsheep/ocr-robustness/internal/imaging"
	"github.com/ironsheep/ocr-robustness/internal/metrics"
	"github.com/ironsheep/ocr-robustness/internal/ocr"
	"github.com/ironsheep/ocr-robustness/internal/perturb"
	"github.com/ironsheep/ocr-robustness/internal/store"
)

// MetricsKey is the object key the report is written to.
const MetricsKey = "metrics.json"

// Deps wires a Pipeline to its collaborators.
type Deps struct {
	Sources       store.ObjectStore
	Variants      store.ObjectStore
	Metrics       store.ObjectStore
	Records       store.RecordStore
	Preprocessing store.PreprocessingStore
	OCR           ocr.Service

	// SourceBucket and VariantBucket name the stores for request checks.
	SourceBucket  string
	VariantBucket string

	// Engine defaults to perturb.NewEngine with default options.
	Engine *perturb.Engine
	// Plan defaults to perturb.DefaultPlan.
	Plan *perturb.Plan
	// GroundTruth defaults to detection.DefaultGroundTruth.
	GroundTruth detection.GroundTruth
	// Suffix defaults to perturb.RandomSuffix.
	Suffix perturb.SuffixFunc
	// NewRunID defaults to uuid.NewString.
	NewRunID func() string
	// Concurrency bounds source images processed at once by EvaluateCorpus.
	Concurrency int
	Logger      *slog.Logger
}

// Pipeline runs the preprocess, detect and gather-metrics stages.
type Pipeline struct {
	deps       Deps
	aggregator *metrics.Aggregator
	logger     *slog.Logger
}

// New validates deps and fills in defaults.
func New(deps Deps) (*Pipeline, error) {
	switch {
	case deps.Sources == nil:
		return nil, fmt.Errorf("pipeline requires a source store")
	case deps.Variants == nil:
		return nil, fmt.Errorf("pipeline requires a variant store")
	case deps.Metrics == nil:
		return nil, fmt.Errorf("pipeline requires a metrics store")
	case deps.Records == nil:
		return nil, fmt.Errorf("pipeline requires a record store")
	case deps.OCR == nil:
		return nil, fmt.Errorf("pipeline requires an OCR service")
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Engine == nil {
		deps.Engine = perturb.NewEngine(perturb.Options{Logger: deps.Logger})
	}
	if deps.Plan == nil {
		deps.Plan = perturb.DefaultPlan()
	}
	if deps.GroundTruth == nil {
		deps.GroundTruth = detection.DefaultGroundTruth()
	}
	if deps.Suffix == nil {
		deps.Suffix = perturb.RandomSuffix
	}
	if deps.NewRunID == nil {
		deps.NewRunID = uuid.NewString
	}
	if deps.Concurrency < 1 {
		deps.Concurrency = 1
	}

	aggregator, err := metrics.NewAggregator(deps.Plan.Taxonomy())
	if err != nil {
		return nil, err
	}
	return &Pipeline{deps: deps, aggregator: aggregator, logger: deps.Logger}, nil
}

// Plan returns the perturbation plan in use.
func (p *Pipeline) Plan() *perturb.Plan {
	return p.deps.Plan
}

// GroundTruth returns the ground-truth table in use.
func (p *Pipeline) GroundTruth() detection.GroundTruth {
	return p.deps.GroundTruth
}

// PreprocessResult describes one preprocessing run.
type PreprocessResult struct {
	Record *store.PreprocessingRecord `json:"record"`
	// VariantKeys lists the stored variants in plan order.
	VariantKeys []string `json:"variant_keys"`
}

// Preprocess perturbs one source image and stores every variant.
//
// Unit failures, whether in the engine or while storing, are recorded in
// the preprocessing record and do not fail the call. An error is returned
// only when the source cannot be read or decoded, or the record cannot be
// written.
func (p *Pipeline) Preprocess(ctx context.Context, req PreprocessRequest) (*PreprocessResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := checkBucket(req.Bucket, p.deps.SourceBucket); err != nil {
		return nil, err
	}
	start := time.Now()

	data, err := p.deps.Sources.Get(ctx, req.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to read source %s: %w", req.Key, err)
	}
	src, err := imaging.DecodeSource(req.Key, data)
	if err != nil {
		return nil, err
	}

	suffix := p.deps.Suffix()
	folder, err := perturb.FolderName(req.Key, suffix)
	if err != nil {
		return nil, err
	}

	result, err := p.deps.Engine.Run(ctx, src, p.deps.Plan)
	if err != nil {
		return nil, fmt.Errorf("failed to perturb %s: %w", req.Key, err)
	}

	runID := req.RunID
	if runID == "" {
		runID = p.deps.NewRunID()
	}
	rec := &store.PreprocessingRecord{
		ID:             folder,
		RunID:          runID,
		SourceImageID:  req.Key,
		Paths:          make(map[string]string, len(result.Variants)),
		OperationTimes: make(map[string]store.Seconds, len(result.Timings)),
		Lightness:      make(map[string]float64, len(result.Variants)),
		Failures:       make(map[string]string),
		CreatedAt:      start.UTC(),
	}
	for kind, d := range result.Timings {
		rec.OperationTimes[string(kind)] = store.SecondsOf(d)
	}
	for _, f := range result.Failures {
		rec.Failures[f.Spec.Key()] = f.Err.Error()
	}

	keys := make([]string, 0, len(result.Variants))
	for _, v := range result.Variants {
		key, err := perturb.StorageKey(req.Key, suffix, v.Spec)
		if err == nil {
			err = p.deps.Variants.Put(ctx, key, v.Data)
		}
		if err != nil {
			rec.Failures[v.Key] = err.Error()
			p.logger.Warn("failed to store variant", "source", req.Key, "operation", v.Key, "error", err)
			continue
		}
		rec.Paths[v.Key] = p.deps.Variants.URL(key)
		rec.Lightness[v.Key] = v.Lightness
		keys = append(keys, key)
	}
	rec.TotalTime = store.SecondsOf(time.Since(start))

	if p.deps.Preprocessing != nil {
		if err := p.deps.Preprocessing.PutPreprocessing(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to save preprocessing record: %w", err)
		}
	}

	p.logger.Info("preprocessed source",
		"source", req.Key, "folder", folder, "variants", len(keys),
		"failures", len(rec.Failures), "elapsed", time.Since(start))
	return &PreprocessResult{Record: rec, VariantKeys: keys}, nil
}

// Detect runs OCR on one stored variant, scores it and upserts the record.
func (p *Pipeline) Detect(ctx context.Context, req DetectRequest) (*store.DetectionRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := checkBucket(req.Bucket, p.deps.VariantBucket); err != nil {
		return nil, err
	}

	data, err := p.deps.Variants.Get(ctx, req.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to read variant %s: %w", req.Key, err)
	}

	start := time.Now()
	texts, err := p.deps.OCR.DetectText(ctx, data)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("failed to detect text in %s: %w", req.Key, err)
	}

	lookupKey := detection.GroundTruthKey(req.Key)
	groundTruth, ok := p.deps.GroundTruth.Lookup(lookupKey)
	if !ok {
		p.logger.Warn("no ground truth for variant", "key", req.Key, "lookup", lookupKey)
	}

	rec := store.NewDetectionRecord(req.Key, p.deps.Variants.URL(req.Key), texts, groundTruth, elapsed)
	if err := p.deps.Records.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save detection record: %w", err)
	}

	p.logger.Debug("detected text",
		"key", req.Key, "tokens", len(rec.RawTokens), "detected", rec.Detected,
		"tier", rec.Tier, "elapsed", elapsed)
	return rec, nil
}

// GatherMetrics aggregates every stored detection record, validates the
// report against its schema and writes it to the metrics store. It returns
// the report and the URL it was written to.
func (p *Pipeline) GatherMetrics(ctx context.Context) (*metrics.Report, string, error) {
	report, err := p.aggregator.AggregateStore(ctx, p.deps.Records)
	if err != nil {
		return nil, "", err
	}

	problems, err := metrics.ValidateReport(report)
	if err != nil {
		return nil, "", err
	}
	if len(problems) > 0 {
		return nil, "", fmt.Errorf("report does not match schema: %v", problems)
	}

	data, err := report.Indent()
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := p.deps.Metrics.Put(ctx, MetricsKey, data); err != nil {
		return nil, "", fmt.Errorf("failed to save report: %w", err)
	}

	url := p.deps.Metrics.URL(MetricsKey)
	p.logger.Info("metrics saved",
		"url", url, "total", report.TotalCount, "accuracy", float64(report.Accuracy))
	return report, url, nil
}
