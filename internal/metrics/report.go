package metrics

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/ironsheep/ocr-robustness/internal/decimal"
)

// Percent is a 0-100 ratio serialized under the decimal float contract.
type Percent float64

func (p Percent) MarshalJSON() ([]byte, error) {
	return decimal.Marshal(float64(p))
}

func (p *Percent) UnmarshalJSON(data []byte) error {
	v, err := decimal.Unmarshal(data)
	if err != nil {
		return err
	}
	*p = Percent(v)
	return nil
}

// OperationStats is the rollup for one operation key.
type OperationStats struct {
	Key             string  `json:"key"`
	UndetectedCount int     `json:"undetected_count"`
	DetectedCount   int     `json:"detected_count"`
	Accuracy        Percent `json:"accuracy"`
}

// Report is the result of one aggregation run.
//
// Its JSON form is a single flat object:
//
//	{
//	  "total_count": 36, "original_image_count": 2,
//	  "undetected_count": 1, "detected_count": 35, "accuracy": 97.222222,
//	  "1_aZ3kQ9xL": ["noise_9.jfif"],
//	  "noise_3_undetected_count": 0, ...,
//	  "noise_3_detected_count": 2, "noise_3_accuracy": 100.0, ...
//	}
//
// Source failure lists appear in source id order and operations in
// taxonomy order.
type Report struct {
	TotalCount         int
	OriginalImageCount int
	UndetectedCount    int
	DetectedCount      int
	Accuracy           Percent
	// Operations holds one entry per taxonomy key, in taxonomy order.
	Operations []OperationStats
	// Failures maps source image ids to the sorted descriptors of their
	// undetected variants. Sources without failures are absent.
	Failures map[string][]string
}

// Operation returns the stats for key.
func (r *Report) Operation(key string) (OperationStats, bool) {
	for _, op := range r.Operations {
		if op.Key == key {
			return op, true
		}
	}
	return OperationStats{}, false
}

func (r *Report) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	first := true
	field := func(key string, value any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	buf.WriteByte('{')
	header := []struct {
		key   string
		value any
	}{
		{"total_count", r.TotalCount},
		{"original_image_count", r.OriginalImageCount},
		{"undetected_count", r.UndetectedCount},
		{"detected_count", r.DetectedCount},
		{"accuracy", r.Accuracy},
	}
	for _, h := range header {
		if err := field(h.key, h.value); err != nil {
			return nil, err
		}
	}

	sources := make([]string, 0, len(r.Failures))
	for id := range r.Failures {
		sources = append(sources, id)
	}
	sort.Strings(sources)
	for _, id := range sources {
		if err := field(id, r.Failures[id]); err != nil {
			return nil, err
		}
	}

	for _, op := range r.Operations {
		if err := field(op.Key+"_undetected_count", op.UndetectedCount); err != nil {
			return nil, err
		}
	}
	for _, op := range r.Operations {
		if err := field(op.Key+"_detected_count", op.DetectedCount); err != nil {
			return nil, err
		}
		if err := field(op.Key+"_accuracy", op.Accuracy); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Indent returns the report as indented JSON, the form written to
// metrics.json.
func (r *Report) Indent() ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "    "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
