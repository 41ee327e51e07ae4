package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/ocr-robustness/internal/imaging"
)

// SourceOutcome summarizes one source image's pass through a corpus run.
type SourceOutcome struct {
	SourceID string `json:"source_id"`
	Folder   string `json:"folder,omitempty"`
	Variants int    `json:"variants"`
	Detected int    `json:"detected"`
	// Failures lists unit and variant failures keyed by operation key or
	// variant object key. A source-level failure is keyed by SourceID.
	Failures map[string]string `json:"failures,omitempty"`
}

// CorpusResult summarizes a corpus run.
type CorpusResult struct {
	RunID    string          `json:"run_id"`
	Sources  []SourceOutcome `json:"sources"`
	Elapsed  time.Duration   `json:"elapsed_ns"`
	Complete bool            `json:"complete"`
}

// ListSources returns the keys of top-level source images with a
// supported extension.
func (p *Pipeline) ListSources(ctx context.Context) ([]string, error) {
	keys, err := p.deps.Sources.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	out := keys[:0]
	for _, k := range keys {
		if !strings.Contains(k, "/") && imaging.SupportedExtension(strings.ToLower(k)) {
			out = append(out, k)
		}
	}
	return out, nil
}

// EvaluateCorpus preprocesses every source image and runs detection on each
// stored variant. Sources run in parallel up to the configured concurrency.
//
// Failures are isolated: a source that cannot be preprocessed, or a variant
// whose detection fails, is reported in its SourceOutcome and the run
// continues. Complete is true when every planned variant of every source
// produced a record. The returned error is only set when the source list
// cannot be read.
func (p *Pipeline) EvaluateCorpus(ctx context.Context) (*CorpusResult, error) {
	start := time.Now()
	sources, err := p.ListSources(ctx)
	if err != nil {
		return nil, err
	}

	res := &CorpusResult{
		RunID:   p.deps.NewRunID(),
		Sources: make([]SourceOutcome, len(sources)),
	}
	p.logger.Info("corpus run started", "run_id", res.RunID, "sources", len(sources))

	var g errgroup.Group
	g.SetLimit(p.deps.Concurrency)
	for i, key := range sources {
		g.Go(func() error {
			res.Sources[i] = p.evaluateSource(ctx, res.RunID, key)
			return nil
		})
	}
	_ = g.Wait()

	res.Complete = true
	for _, s := range res.Sources {
		if len(s.Failures) > 0 || s.Variants != p.deps.Plan.Len() {
			res.Complete = false
		}
	}
	res.Elapsed = time.Since(start)
	p.logger.Info("corpus run finished",
		"run_id", res.RunID, "sources", len(sources), "complete", res.Complete, "elapsed", res.Elapsed)
	return res, nil
}

func (p *Pipeline) evaluateSource(ctx context.Context, runID, key string) SourceOutcome {
	out := SourceOutcome{SourceID: key, Failures: make(map[string]string)}

	pre, err := p.Preprocess(ctx, PreprocessRequest{Key: key, RunID: runID})
	if err != nil {
		out.Failures[key] = err.Error()
		p.logger.Error("preprocessing failed", "source", key, "error", err)
		return out
	}
	out.Folder = pre.Record.ID
	for op, msg := range pre.Record.Failures {
		out.Failures[op] = msg
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(p.deps.Concurrency)
	for _, vk := range pre.VariantKeys {
		g.Go(func() error {
			rec, err := p.Detect(ctx, DetectRequest{Key: vk})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.Failures[vk] = err.Error()
				p.logger.Warn("detection failed", "key", vk, "error", err)
				return nil
			}
			out.Variants++
			if rec.Detected {
				out.Detected++
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(out.Failures) == 0 {
		out.Failures = nil
	}
	return out
}
