package perturb

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/ocr-robustness/internal/imaging"
)

// Variant is one encoded perturbation of a source image.
type Variant struct {
	SourceID string
	Spec     Spec
	// Key is the operation key, e.g. "scaled_10".
	Key    string
	Data   []byte
	Width  int
	Height int
	// Lightness is the mean CIE L* of the variant before encoding.
	Lightness float64
}

// UnitError reports the failure of a single (kind, parameter) unit.
type UnitError struct {
	Spec Spec
	Err  error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Spec.Key(), e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// Result collects everything one engine run produced for a source image.
type Result struct {
	SourceID string
	// Variants holds the successful units in plan order.
	Variants []*Variant
	// Failures holds the failed units in plan order.
	Failures []*UnitError
	// Timings is the wall time of each operation batch.
	Timings map[Kind]time.Duration
	// Elapsed is the wall time of the whole run.
	Elapsed time.Duration
}

// Encoder turns a transformed image into stored bytes.
type Encoder func(img image.Image) ([]byte, error)

// JPEGEncoder encodes at the given quality.
func JPEGEncoder(quality int) Encoder {
	return func(img image.Image) ([]byte, error) {
		return imaging.EncodeJPEG(img, quality)
	}
}

// Options configures an Engine. Zero values select defaults.
type Options struct {
	// Encoder defaults to JPEGEncoder(imaging.DefaultJPEGQuality).
	Encoder Encoder
	// Rand defaults to UnseededRand.
	Rand RandFactory
	// Concurrency bounds the number of units of one operation that run at
	// once. Zero or negative means one goroutine per unit.
	Concurrency int
	Logger      *slog.Logger
}

// Engine applies a Plan to source images. An Engine holds no per-run state
// and may be shared between goroutines.
type Engine struct {
	encode      Encoder
	rand        RandFactory
	concurrency int
	logger      *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		encode:      opts.Encoder,
		rand:        opts.Rand,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}
	if e.encode == nil {
		e.encode = JPEGEncoder(imaging.DefaultJPEGQuality)
	}
	if e.rand == nil {
		e.rand = UnseededRand()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Run applies every unit of plan to src.
//
// The four operation kinds run concurrently, as do the units within each
// kind. A failing unit is recorded in Result.Failures and never stops its
// siblings. Run itself only fails for missing arguments; a cancelled
// context turns every unit that had not started into a failure.
func (e *Engine) Run(ctx context.Context, src *imaging.SourceImage, plan *Plan) (*Result, error) {
	if src == nil || src.Image == nil {
		return nil, fmt.Errorf("perturbation requires a source image")
	}
	if plan == nil || plan.Len() == 0 {
		return nil, fmt.Errorf("perturbation requires a non-empty plan")
	}

	start := time.Now()
	specs := plan.Specs()
	variants := make([]*Variant, len(specs))
	failures := make([]*UnitError, len(specs))

	var mu sync.Mutex
	timings := make(map[Kind]time.Duration)

	var ops errgroup.Group
	for kind, positions := range plan.byKind() {
		ops.Go(func() error {
			opStart := time.Now()
			var units errgroup.Group
			if e.concurrency > 0 {
				units.SetLimit(e.concurrency)
			}
			for _, pos := range positions {
				units.Go(func() error {
					spec := specs[pos]
					if err := ctx.Err(); err != nil {
						failures[pos] = &UnitError{Spec: spec, Err: err}
						return nil
					}
					v, err := e.Apply(src, spec)
					if err != nil {
						failures[pos] = &UnitError{Spec: spec, Err: err}
						return nil
					}
					variants[pos] = v
					return nil
				})
			}
			_ = units.Wait()

			elapsed := time.Since(opStart)
			mu.Lock()
			timings[kind] = elapsed
			mu.Unlock()
			e.logger.Debug("operation batch finished",
				"source", src.ID, "kind", kind, "units", len(positions), "elapsed", elapsed)
			return nil
		})
	}
	_ = ops.Wait()

	res := &Result{
		SourceID: src.ID,
		Timings:  timings,
		Elapsed:  time.Since(start),
	}
	for i := range specs {
		if variants[i] != nil {
			res.Variants = append(res.Variants, variants[i])
		}
		if failures[i] != nil {
			res.Failures = append(res.Failures, failures[i])
			e.logger.Warn("perturbation unit failed",
				"source", src.ID, "operation", specs[i].Key(), "error", failures[i].Err)
		}
	}
	return res, nil
}

// Apply runs a single unit synchronously.
func (e *Engine) Apply(src *imaging.SourceImage, spec Spec) (*Variant, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	out, err := e.transform(src, spec)
	if err != nil {
		return nil, err
	}

	data, err := e.encode(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode variant: %w", err)
	}

	bounds := out.Bounds()
	return &Variant{
		SourceID:  src.ID,
		Spec:      spec,
		Key:       spec.Key(),
		Data:      data,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Lightness: imaging.MeanLightness(out),
	}, nil
}

func (e *Engine) transform(src *imaging.SourceImage, spec Spec) (image.Image, error) {
	switch spec.Kind {
	case KindScale:
		return imaging.Scale(src.Image, int(spec.Parameter))
	case KindBlur:
		return imaging.BoxBlur(src.Image, int(spec.Parameter))
	case KindGamma:
		return imaging.AdjustGamma(src.Image, spec.Parameter)
	case KindNoise:
		return imaging.SaltAndPepper(src.Image, spec.Parameter, e.rand(src.ID, spec))
	}
	return nil, fmt.Errorf("unknown operation kind %q", spec.Kind)
}
