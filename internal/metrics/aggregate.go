package metrics

import (
	"context"
	"fmt"
	"sort"

	"github.com/ironsheep/ocr-robustness/internal/detection"
	"github.com/ironsheep/ocr-robustness/internal/store"
)

var reservedKeys = map[string]bool{
	"total_count":          true,
	"original_image_count": true,
	"undetected_count":     true,
	"detected_count":       true,
	"accuracy":             true,
}

// Aggregator turns detection records into a Report for a fixed taxonomy of
// operation keys. The taxonomy size is the number of variants every source
// image is expected to contribute.
type Aggregator struct {
	taxonomy []string
	known    map[string]bool
}

// NewAggregator creates an Aggregator for the given operation keys, in
// report order.
func NewAggregator(taxonomy []string) (*Aggregator, error) {
	if len(taxonomy) == 0 {
		return nil, fmt.Errorf("aggregator requires at least one operation key")
	}
	known := make(map[string]bool, len(taxonomy))
	for _, key := range taxonomy {
		if key == "" || known[key] {
			return nil, fmt.Errorf("invalid taxonomy: empty or duplicate key %q", key)
		}
		known[key] = true
	}
	return &Aggregator{
		taxonomy: append([]string(nil), taxonomy...),
		known:    known,
	}, nil
}

// Taxonomy returns the operation keys in report order.
func (a *Aggregator) Taxonomy() []string {
	return append([]string(nil), a.taxonomy...)
}

// AggregateStore reads every record with a single Scan and aggregates them.
func (a *Aggregator) AggregateStore(ctx context.Context, records store.RecordStore) (*Report, error) {
	recs, err := records.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan detection records: %w", err)
	}
	return a.Aggregate(recs)
}

// Aggregate computes the report for a complete record population.
//
// Every record id must have the form "{source}/{descriptor}" and every
// descriptor, minus its extension, must be a taxonomy key. The population
// size must be a positive multiple of the taxonomy size, and no operation
// may have more failures than there are source images. Any violation
// returns an *IntegrityError and no report.
//
// The result does not depend on the order of records.
func (a *Aggregator) Aggregate(records []*store.DetectionRecord) (*Report, error) {
	total := len(records)
	if total == 0 {
		return nil, integrityf("empty record population", "total_count=0")
	}
	if total%len(a.taxonomy) != 0 {
		return nil, integrityf("record count is not a multiple of the operation count",
			"total_count=%d operations=%d", total, len(a.taxonomy))
	}
	original := total / len(a.taxonomy)

	undetectedByOp := make(map[string]int, len(a.taxonomy))
	failures := make(map[string][]string)
	undetected := 0

	for _, rec := range records {
		source, descriptor, ok := detection.SplitObjectKey(rec.ID)
		if !ok {
			return nil, integrityf("malformed record id", "%q", rec.ID)
		}
		key := detection.OperationKey(descriptor)
		if !a.known[key] {
			return nil, integrityf("unknown operation key", "%q (record %q)", key, rec.ID)
		}
		if rec.Detected {
			continue
		}
		if reservedKeys[source] {
			return nil, integrityf("source id collides with a report field", "%q", source)
		}
		undetected++
		undetectedByOp[key]++
		failures[source] = append(failures[source], descriptor)
	}

	for _, list := range failures {
		sort.Strings(list)
	}

	detected := total - undetected
	report := &Report{
		TotalCount:         total,
		OriginalImageCount: original,
		UndetectedCount:    undetected,
		DetectedCount:      detected,
		Accuracy:           Percent(float64(detected) / float64(total) * 100),
		Operations:         make([]OperationStats, 0, len(a.taxonomy)),
		Failures:           failures,
	}

	for _, key := range a.taxonomy {
		n := undetectedByOp[key]
		if n > original {
			return nil, integrityf("operation has more failures than source images",
				"%s_undetected_count=%d original_image_count=%d", key, n, original)
		}
		opDetected := original - n
		report.Operations = append(report.Operations, OperationStats{
			Key:             key,
			UndetectedCount: n,
			DetectedCount:   opDetected,
			Accuracy:        Percent(float64(opDetected) / float64(original) * 100),
		})
	}
	return report, nil
}
