package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// DefaultLanguage is the Tesseract language used when none is configured.
const DefaultLanguage = "eng"

// Tesseract is a Service backed by the local Tesseract engine.
//
// It reports every recognized line followed by every recognized word, so
// a ground truth can match either a whole line or its individual words.
// Texts are normalized with Normalize.
//
// A gosseract client is not safe for concurrent use, so each call creates
// its own. Tesseract itself holds only configuration and may be shared.
type Tesseract struct {
	language string
}

// NewTesseract creates a service for the given language code ("eng",
// "deu", ...). An empty language selects DefaultLanguage.
func NewTesseract(language string) *Tesseract {
	if language == "" {
		language = DefaultLanguage
	}
	return &Tesseract{language: language}
}

// Language returns the configured language code.
func (t *Tesseract) Language() string {
	return t.language
}

// DetectText runs OCR on encoded image bytes (PNG, JPEG, TIFF, BMP).
//
// Tesseract calls cannot be interrupted; ctx is checked before the engine
// starts and once it finishes.
func (t *Tesseract) DetectText(ctx context.Context, image []byte) ([]string, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("failed to detect text: empty image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	var texts []string
	for _, level := range []gosseract.PageIteratorLevel{gosseract.RIL_TEXTLINE, gosseract.RIL_WORD} {
		boxes, err := client.GetBoundingBoxes(level)
		if err != nil {
			return nil, fmt.Errorf("OCR failed: %w", err)
		}
		for _, box := range boxes {
			texts = append(texts, box.Word)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Normalize(texts), nil
}

// Version returns the version string of the linked Tesseract library.
func Version() string {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version()
}
