package ocr

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
)

// Service turns encoded image bytes into detected text.
//
// Implementations return texts in the order the engine reports them. Only
// the text content is used; geometry and confidence are discarded.
type Service interface {
	DetectText(ctx context.Context, image []byte) ([]string, error)
}

// Func adapts a function to Service.
type Func func(ctx context.Context, image []byte) ([]string, error)

func (f Func) DetectText(ctx context.Context, image []byte) ([]string, error) {
	return f(ctx, image)
}

// Normalize trims and lowercases every text and drops empty ones.
func Normalize(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Static is a Service that answers from a fixed table keyed by the SHA-256
// of the image bytes. Images it has no answer for return Default.
//
// Static is safe for concurrent use.
type Static struct {
	mu      sync.RWMutex
	answers map[[sha256.Size]byte][]string
	calls   int

	// Default is returned for unknown images.
	Default []string
	// Err, when set, is returned by every call.
	Err error
}

// NewStatic creates an empty Static service.
func NewStatic(defaultTexts ...string) *Static {
	return &Static{
		answers: make(map[[sha256.Size]byte][]string),
		Default: defaultTexts,
	}
}

// Set registers the texts returned for image.
func (s *Static) Set(image []byte, texts ...string) {
	s.mu.Lock()
	s.answers[sha256.Sum256(image)] = texts
	s.mu.Unlock()
}

// Calls reports how many times DetectText ran.
func (s *Static) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

func (s *Static) DetectText(ctx context.Context, image []byte) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calls++
	texts, ok := s.answers[sha256.Sum256(image)]
	s.mu.Unlock()

	if s.Err != nil {
		return nil, fmt.Errorf("text detection failed: %w", s.Err)
	}
	if !ok {
		texts = s.Default
	}
	return append([]string(nil), texts...), nil
}

var (
	_ Service = Func(nil)
	_ Service = (*Static)(nil)
	_ Service = (*Tesseract)(nil)
)
