package imaging

import (
	"image"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// maxLightnessSamples bounds the work done by MeanLightness on large images.
const maxLightnessSamples = 128 * 128

// MeanLightness returns the average CIE L* of img on a 0-100 scale.
//
// Large images are sampled on a
// regular grid of at most maxLightnessSamples points. Fully transparent pixels
// are skipped; an image with no opaque pixels reports 0.
func MeanLightness(img image.Image) float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	step := 1
	if w*h > maxLightnessSamples {
		step = int(math.Ceil(math.Sqrt(float64(w*h) / maxLightnessSamples)))
	}

	var sum float64
	var n int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				continue
			}
			l, _, _ := c.Lab()
			sum += l
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Round(sum/float64(n)*10000) / 100
}
