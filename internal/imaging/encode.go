package imaging

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// DefaultJPEGQuality is the encoder quality used for variants when the caller
// does not configure one.
const DefaultJPEGQuality = 95

// EncodeJPEG encodes img as a baseline JPEG.
//
// Variants are always stored as JPEG regardless of the source extension.
// The same pixels and quality give the same bytes.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		return nil, fmt.Errorf("invalid JPEG quality %d: must be within 1-100", quality)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("failed to encode image: empty bounds %v", bounds)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
