package store

import (
	"maps"
	"strings"
	"time"

	"github.com/ironsheep/ocr-robustness/internal/decimal"
	"github.com/ironsheep/ocr-robustness/internal/detection"
)

// Seconds is a duration in seconds, serialized under the decimal float
// contract.
type Seconds float64

// SecondsOf converts a duration.
func SecondsOf(d time.Duration) Seconds {
	return Seconds(d.Seconds())
}

func (s Seconds) MarshalJSON() ([]byte, error) {
	return decimal.Marshal(float64(s))
}

func (s *Seconds) UnmarshalJSON(data []byte) error {
	v, err := decimal.Unmarshal(data)
	if err != nil {
		return err
	}
	*s = Seconds(v)
	return nil
}

// DetectionRecord is the persisted outcome of running OCR on one variant.
//
// Records are keyed by ID, the variant's object key. Writing a record with
// an existing ID replaces it.
type DetectionRecord struct {
	// ID is the object key, "{base}_{suffix}/{op}_{param}.{ext}".
	ID string `json:"id"`
	// SourceImageID is the first key segment, "{base}_{suffix}".
	SourceImageID string `json:"image_id"`
	// OperationDescriptor is the last key segment, "{op}_{param}.{ext}".
	OperationDescriptor string `json:"operation"`
	ImageURI            string `json:"image_uri"`
	// RawTokens are the lowercased OCR texts in service order.
	RawTokens   []string `json:"result"`
	GroundTruth *string  `json:"ground_truth"`
	// Detected and Tier are derived from RawTokens and GroundTruth by
	// NewDetectionRecord. Do not set them directly.
	Detected      bool           `json:"detected"`
	Tier          detection.Tier `json:"tier"`
	ExecutionTime Seconds        `json:"execution_time"`
}

// NewDetectionRecord builds a record for one variant and scores it.
//
// The source image id and descriptor are taken from objectKey; if the key
// does not have the "{folder}/{descriptor}" shape both are left empty and
// the aggregator will reject the record.
func NewDetectionRecord(objectKey, imageURI string, tokens []string, groundTruth *string, elapsed time.Duration) *DetectionRecord {
	folder, descriptor, _ := detection.SplitObjectKey(objectKey)

	lowered := make([]string, len(tokens))
	for i, tok := range tokens {
		lowered[i] = strings.ToLower(tok)
	}

	verdict := detection.Validate(lowered, groundTruth)
	return &DetectionRecord{
		ID:                  objectKey,
		SourceImageID:       folder,
		OperationDescriptor: descriptor,
		ImageURI:            imageURI,
		RawTokens:           lowered,
		GroundTruth:         groundTruth,
		Detected:            verdict.Detected,
		Tier:                verdict.Tier,
		ExecutionTime:       SecondsOf(elapsed),
	}
}

func (r *DetectionRecord) clone() *DetectionRecord {
	c := *r
	c.RawTokens = append([]string(nil), r.RawTokens...)
	if r.GroundTruth != nil {
		gt := *r.GroundTruth
		c.GroundTruth = &gt
	}
	return &c
}

// PreprocessingRecord summarizes one perturbation run of a source image.
type PreprocessingRecord struct {
	// ID is the storage folder of the run, "{base}_{suffix}".
	ID            string `json:"id"`
	RunID         string `json:"run_id"`
	SourceImageID string `json:"source_image_id"`
	// Paths maps operation keys to the URL of the stored variant.
	Paths map[string]string `json:"paths"`
	// OperationTimes maps operation kinds to the wall time of their batch.
	OperationTimes map[string]Seconds `json:"operation_times"`
	TotalTime      Seconds            `json:"total_preprocessing_time"`
	// Lightness maps operation keys to the variant's mean CIE L*.
	Lightness map[string]float64 `json:"lightness,omitempty"`
	// Failures maps operation keys to the error that stopped the unit.
	Failures  map[string]string `json:"failures,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func (r *PreprocessingRecord) clone() *PreprocessingRecord {
	c := *r
	c.Paths = maps.Clone(r.Paths)
	c.OperationTimes = maps.Clone(r.OperationTimes)
	c.Lightness = maps.Clone(r.Lightness)
	c.Failures = maps.Clone(r.Failures)
	return &c
}
