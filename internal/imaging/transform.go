package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand/v2"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/clone"
	"github.com/disintegration/imaging"
)

// resizeFilter is the one interpolation algorithm used for every resize.
var resizeFilter = imaging.Linear

// ScaledDimensions returns the output size of a percent scale:
// floor(width*percent/100) by floor(height*percent/100).
func ScaledDimensions(width, height, percent int) (int, int) {
	return width * percent / 100, height * percent / 100
}

// Scale resizes img to percent of its original size.
//
// Parameters:
//   - img: Source image.
//   - percent: Target size as a percentage of the source (1-100 typical).
//
// Returns:
//   - *image.NRGBA: The resized image with ScaledDimensions bounds.
//   - error: Non-nil if percent is not positive or if either scaled dimension
//     collapses to zero. A zero dimension is refused rather than passed to the
//     resampler, which would otherwise preserve aspect ratio and silently
//     produce a different size.
func Scale(img image.Image, percent int) (*image.NRGBA, error) {
	if percent <= 0 {
		return nil, fmt.Errorf("invalid scale percent %d: must be positive", percent)
	}
	bounds := img.Bounds()
	w, h := ScaledDimensions(bounds.Dx(), bounds.Dy(), percent)
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("scale %d%% of %dx%d yields empty image %dx%d",
			percent, bounds.Dx(), bounds.Dy(), w, h)
	}
	return imaging.Resize(img, w, h, resizeFilter), nil
}

// BoxBlur applies a normalized k×k mean filter.
//
// Borders are handled by replicating the edge pixels (edge-extend padding).
// A kernel size of 1 returns an unmodified copy.
//
// Parameters:
//   - img: Source image.
//   - kernel: Kernel edge length. Must be a positive odd number.
func BoxBlur(img image.Image, kernel int) (*image.RGBA, error) {
	if kernel <= 0 || kernel%2 == 0 {
		return nil, fmt.Errorf("invalid box kernel size %d: must be positive and odd", kernel)
	}
	// bild sizes the kernel as 2*radius+1.
	return blur.Box(img, float64(kernel/2)), nil
}

// GammaTable builds the 256-entry lookup table for gamma g:
//
//	table[i] = clamp(round(((i/255)^(1/g))·255), 0, 255)
//
// The table is computed from scratch on every call; nothing is cached
// across gamma values.
func GammaTable(gamma float64) ([256]uint8, error) {
	var table [256]uint8
	if gamma <= 0 || math.IsNaN(gamma) || math.IsInf(gamma, 0) {
		return table, fmt.Errorf("invalid gamma %v: must be a positive finite number", gamma)
	}

	inv := 1.0 / gamma
	for i := range table {
		v := math.Round(math.Pow(float64(i)/255.0, inv) * 255.0)
		table[i] = uint8(clampFloat(v, 0, 255))
	}
	return table, nil
}

// ApplyTable maps every colour channel of img through table.
// Alpha is left untouched.
func ApplyTable(img image.Image, table [256]uint8) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: table[c.R],
			G: table[c.G],
			B: table[c.B],
			A: c.A,
		}
	})
}

// AdjustGamma is GammaTable followed by ApplyTable.
func AdjustGamma(img image.Image, gamma float64) (*image.NRGBA, error) {
	table, err := GammaTable(gamma)
	if err != nil {
		return nil, err
	}
	return ApplyTable(img, table), nil
}

// SaltAndPepper returns a copy of img with impulse noise.
//
// Every pixel draws one uniform value u from r, in row-major order:
//   - u < p/2: salt, the pixel is forced to white
//   - p/2 <= u < p: pepper, the pixel is forced to black
//   - otherwise the pixel is unchanged
//
// Alpha is kept, so salt on a translucent pixel is white at the same opacity.
// Output is fully determined by the state of r: callers that need repeatable
// noise pass a seeded source.
func SaltAndPepper(img image.Image, p float64, r *rand.Rand) (*image.RGBA, error) {
	if p < 0 || p > 1 || math.IsNaN(p) {
		return nil, fmt.Errorf("invalid noise probability %v: must be within [0, 1]", p)
	}
	if r == nil {
		return nil, fmt.Errorf("noise requires a random source")
	}

	out := clone.AsRGBA(img)
	half := p / 2
	bounds := out.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			u := r.Float64()
			if u >= p {
				continue
			}
			i := out.PixOffset(x, y)
			px := out.Pix[i : i+4 : i+4]
			// Pix is alpha-premultiplied: white at alpha a is (a, a, a, a).
			v := uint8(0)
			if u < half {
				v = px[3]
			}
			px[0], px[1], px[2] = v, v, v
		}
	}
	return out, nil
}

// clampFloat constrains a float to the range [min, max].
func clampFloat(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
