package perturb

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/ironsheep/ocr-robustness/internal/imaging"
)

// createSource creates a striped source image so every operation changes it.
func createSource(id string, width, height int) *imaging.SourceImage {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(40)
			if (x/4)%2 == 0 {
				v = 210
			}
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return imaging.NewSourceImage(id, img)
}

func TestEngineRun_DefaultPlan(t *testing.T) {
	engine := NewEngine(Options{Rand: SeededRand(1)})
	src := createSource("1.jfif", 60, 40)

	res, err := engine.Run(context.Background(), src, DefaultPlan())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", res.Failures)
	}
	if len(res.Variants) != 18 {
		t.Fatalf("variants: got %d, want 18", len(res.Variants))
	}

	// Plan order is kept regardless of completion order.
	for i, s := range DefaultPlan().Specs() {
		if res.Variants[i].Key != s.Key() {
			t.Errorf("variant %d: got %s, want %s", i, res.Variants[i].Key, s.Key())
		}
	}

	for _, k := range Kinds {
		if _, ok := res.Timings[k]; !ok {
			t.Errorf("missing timing for %s", k)
		}
	}

	for _, v := range res.Variants {
		if v.SourceID != "1.jfif" {
			t.Errorf("%s: source id %q", v.Key, v.SourceID)
		}
		if len(v.Data) == 0 {
			t.Errorf("%s: empty data", v.Key)
		}
		if v.Spec.Kind == KindScale {
			w, h := imaging.ScaledDimensions(60, 40, int(v.Spec.Parameter))
			if v.Width != w || v.Height != h {
				t.Errorf("%s: got %dx%d, want %dx%d", v.Key, v.Width, v.Height, w, h)
			}
		} else if v.Width != 60 || v.Height != 40 {
			t.Errorf("%s: got %dx%d, want 60x40", v.Key, v.Width, v.Height)
		}
	}
}

func TestEngineApply_Idempotent(t *testing.T) {
	engine := NewEngine(Options{})
	src := createSource("2.jfif", 48, 32)

	for _, spec := range []Spec{
		{KindScale, 50, 2},
		{KindBlur, 9, 2},
		{KindGamma, 0.25, 0},
	} {
		a, err := engine.Apply(src, spec)
		if err != nil {
			t.Fatalf("%s: %v", spec, err)
		}
		b, err := engine.Apply(src, spec)
		if err != nil {
			t.Fatalf("%s: %v", spec, err)
		}
		if a.Key != b.Key {
			t.Errorf("%s: keys differ: %s vs %s", spec, a.Key, b.Key)
		}
		if !bytes.Equal(a.Data, b.Data) {
			t.Errorf("%s: output bytes differ between runs", spec)
		}
	}
}

func TestEngineApply_SeededNoise(t *testing.T) {
	src := createSource("3.jfif", 32, 32)
	spec := Spec{KindNoise, 0.5, 2}

	a, err := NewEngine(Options{Rand: SeededRand(7)}).Apply(src, spec)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	b, err := NewEngine(Options{Rand: SeededRand(7)}).Apply(src, spec)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !bytes.Equal(a.Data, b.Data) {
		t.Error("seeded noise differs between engines")
	}
}

func TestEngineRun_IsolatesEncodeFailure(t *testing.T) {
	errBoom := errors.New("boom")
	encode := JPEGEncoder(imaging.DefaultJPEGQuality)
	engine := NewEngine(Options{
		Rand: SeededRand(1),
		Encoder: func(img image.Image) ([]byte, error) {
			if img.Bounds().Dx() == 12 {
				return nil, errBoom
			}
			return encode(img)
		},
	})

	res, err := engine.Run(context.Background(), createSource("4.jfif", 40, 40), DefaultPlan())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("failures: got %d, want 1", len(res.Failures))
	}
	if res.Failures[0].Spec.Key() != "scaled_30" {
		t.Errorf("failed unit: got %s, want scaled_30", res.Failures[0].Spec.Key())
	}
	if !errors.Is(res.Failures[0], errBoom) {
		t.Error("unit error should wrap the encoder error")
	}
	if len(res.Variants) != 17 {
		t.Errorf("variants: got %d, want 17", len(res.Variants))
	}
}

func TestEngineRun_IsolatesCollapsedScale(t *testing.T) {
	engine := NewEngine(Options{Rand: SeededRand(1), Concurrency: 2})

	res, err := engine.Run(context.Background(), createSource("5.jfif", 5, 5), DefaultPlan())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Failures) != 1 || res.Failures[0].Spec.Key() != "scaled_10" {
		t.Fatalf("expected only scaled_10 to fail, got %v", res.Failures)
	}
	if len(res.Variants) != 17 {
		t.Errorf("variants: got %d, want 17", len(res.Variants))
	}
}

func TestEngineRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewEngine(Options{}).Run(ctx, createSource("6.jfif", 20, 20), DefaultPlan())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Variants) != 0 {
		t.Errorf("variants: got %d, want 0", len(res.Variants))
	}
	if len(res.Failures) != 18 {
		t.Errorf("failures: got %d, want 18", len(res.Failures))
	}
	for _, f := range res.Failures {
		if !errors.Is(f, context.Canceled) {
			t.Errorf("%s: got %v, want context.Canceled", f.Spec.Key(), f.Err)
		}
	}
}

func TestEngineRun_InvalidArguments(t *testing.T) {
	engine := NewEngine(Options{})
	if _, err := engine.Run(context.Background(), nil, DefaultPlan()); err == nil {
		t.Error("nil source should fail")
	}
	if _, err := engine.Run(context.Background(), createSource("7.jfif", 4, 4), nil); err == nil {
		t.Error("nil plan should fail")
	}
}
