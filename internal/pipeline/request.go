package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ironsheep/ocr-robustness/internal/detection"
	"github.com/ironsheep/ocr-robustness/internal/perturb"
)

// ErrInvalidRequest is wrapped by every request validation failure.
var ErrInvalidRequest = errors.New("invalid request")

// PreprocessRequest asks for the perturbation battery of one source image.
type PreprocessRequest struct {
	// Bucket optionally names the source store; when set it must match the
	// pipeline's source bucket.
	Bucket string `json:"bucket,omitempty"`
	// Key is the source image file name, e.g. "1.jfif".
	Key string `json:"key"`
	// RunID groups the preprocessing records of one corpus run. A new id is
	// generated when empty.
	RunID string `json:"run_id,omitempty"`
}

// Validate checks that Key is a plain "name.ext" file name.
func (r PreprocessRequest) Validate() error {
	if r.Key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidRequest)
	}
	if _, _, err := perturb.SplitSourceID(r.Key); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// DetectRequest asks for text detection on one stored variant.
type DetectRequest struct {
	// Bucket optionally names the variant store; when set it must match
	// the pipeline's variant bucket.
	Bucket string `json:"bucket,omitempty"`
	// Key is the variant object key, "{base}_{suffix}/{op}_{param}.{ext}".
	Key string `json:"key"`
}

// Validate checks that Key has exactly the "{folder}/{descriptor}" shape.
func (r DetectRequest) Validate() error {
	if r.Key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidRequest)
	}
	if _, _, ok := detection.SplitObjectKey(r.Key); !ok {
		return fmt.Errorf("%w: key %q must have the form folder/descriptor", ErrInvalidRequest, r.Key)
	}
	if strings.Contains(r.Key, "..") {
		return fmt.Errorf("%w: key %q must not contain '..'", ErrInvalidRequest, r.Key)
	}
	return nil
}

func checkBucket(requested, configured string) error {
	if requested != "" && configured != "" && requested != configured {
		return fmt.Errorf("%w: bucket %q is not %q", ErrInvalidRequest, requested, configured)
	}
	return nil
}
