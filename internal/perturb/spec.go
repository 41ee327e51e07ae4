package perturb

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind names one of the four perturbation operations.
type Kind string

const (
	KindScale Kind = "scale"
	KindBlur  Kind = "blur"
	KindGamma Kind = "gamma"
	KindNoise Kind = "noise"
)

// Kinds lists every operation kind in execution order.
var Kinds = []Kind{KindScale, KindBlur, KindGamma, KindNoise}

// Prefix returns the descriptor prefix used in operation keys and storage
// paths. Gamma variants are stored as "brightness" for compatibility with
// existing result sets.
func (k Kind) Prefix() string {
	switch k {
	case KindScale:
		return "scaled"
	case KindBlur:
		return "blurred"
	case KindGamma:
		return "brightness"
	case KindNoise:
		return "noise"
	}
	return string(k)
}

func (k Kind) ordinal() int {
	for i, kk := range Kinds {
		if kk == k {
			return i
		}
	}
	return -1
}

// Fixed parameter domains.
var (
	ScalePercents     = []float64{10, 30, 50, 70, 90}
	BlurKernels       = []float64{1, 5, 9, 13, 17}
	GammaValues       = []float64{0.25, 1.5, 3.0}
	NoiseProbabilities = []float64{0.1, 0.3, 0.5, 0.7, 0.9}
)

// Domain returns the fixed parameter values for k, or nil for an unknown kind.
func Domain(k Kind) []float64 {
	switch k {
	case KindScale:
		return ScalePercents
	case KindBlur:
		return BlurKernels
	case KindGamma:
		return GammaValues
	case KindNoise:
		return NoiseProbabilities
	}
	return nil
}

// Spec describes one perturbation unit: an operation kind applied with one
// parameter value. StepIndex is the position of the parameter within its
// kind's domain.
type Spec struct {
	Kind      Kind    `json:"kind"`
	Parameter float64 `json:"parameter"`
	StepIndex int     `json:"step_index"`
}

// Validate checks that the parameter belongs to the kind's fixed domain and
// that StepIndex points at it.
func (s Spec) Validate() error {
	domain := Domain(s.Kind)
	if domain == nil {
		return fmt.Errorf("unknown operation kind %q", s.Kind)
	}
	if s.StepIndex < 0 || s.StepIndex >= len(domain) {
		return fmt.Errorf("%s step index %d out of range [0, %d)", s.Kind, s.StepIndex, len(domain))
	}
	if domain[s.StepIndex] != s.Parameter {
		return fmt.Errorf("%s parameter %v does not match step %d (%v)",
			s.Kind, s.Parameter, s.StepIndex, domain[s.StepIndex])
	}
	return nil
}

// Label renders the parameter the way it appears in operation keys:
// integers for scale and blur, at least one decimal for gamma ("3.0"),
// and tenths for noise (0.3 -> "3").
func (s Spec) Label() string {
	switch s.Kind {
	case KindScale, KindBlur:
		return strconv.Itoa(int(s.Parameter))
	case KindGamma:
		label := strconv.FormatFloat(s.Parameter, 'f', -1, 64)
		if !strings.ContainsAny(label, ".eE") {
			label += ".0"
		}
		return label
	case KindNoise:
		return strconv.Itoa(int(math.Round(s.Parameter * 10)))
	}
	return strconv.FormatFloat(s.Parameter, 'f', -1, 64)
}

// Key returns the operation key, e.g. "blurred_9" or "brightness_0.25".
func (s Spec) Key() string {
	return s.Kind.Prefix() + "_" + s.Label()
}

func (s Spec) String() string {
	return s.Key()
}
