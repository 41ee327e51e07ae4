package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// SourceImage is a labeled corpus image that perturbations are derived from.
//
// A SourceImage is read-only once decoded: every transform in this package
// returns a new image and never writes into Image.
type SourceImage struct {
	// ID is the source file name (e.g. "1.jfif"). It is the identity used to
	// look up ground truth and to derive variant storage keys.
	ID string

	// Image holds the decoded pixels.
	Image image.Image

	// Width is the image width in pixels.
	Width int

	// Height is the image height in pixels.
	Height int
}

// NewSourceImage wraps an already decoded image.
func NewSourceImage(id string, img image.Image) *SourceImage {
	bounds := img.Bounds()
	return &SourceImage{
		ID:     id,
		Image:  img,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}
}

// DecodeSource decodes encoded image bytes into a SourceImage.
//
// Parameters:
//   - id: The source file name used as the image identity.
//   - data: Encoded image bytes. JPEG (including .jfif), PNG, GIF, BMP, TIFF
//     and WebP are supported.
//
// Returns:
//   - *SourceImage: The decoded image. EXIF orientation is applied so that the
//     pixel grid matches what a viewer (and the OCR service) would see.
//   - error: Non-nil if data is empty or cannot be decoded.
func DecodeSource(id string, data []byte) (*SourceImage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("failed to decode image %s: empty payload", id)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", id, err)
	}

	return NewSourceImage(id, img), nil
}

// ImageCache provides thread-safe caching of decoded source images.
//
// Sources are keyed by their file path. A corpus run may ask for the same
// source several times (perturbation, then ground-truth inspection); the cache
// keeps the decode cost to one per path.
//
// ImageCache is safe for concurrent use by multiple goroutines.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]*SourceImage
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]*SourceImage),
	}
}

// Load retrieves a source image from the cache or decodes it from disk.
//
// The returned SourceImage takes its ID from the base name of path, so
// "/corpus/1.jfif" and "1.jfif" yield the same identity but separate cache
// entries.
//
// # Errors
//
//   - Returns error if the file does not exist or cannot be read
//   - Returns error if the file is not a decodable image
func (c *ImageCache) Load(path string) (*SourceImage, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	src, err := DecodeSource(filepath.Base(path), data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = src
	c.mu.Unlock()

	return src, nil
}

// Len reports how many sources are currently cached.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Clear removes all images from the cache, freeing the associated memory.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*SourceImage)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
//
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// SupportedExtension reports whether a file name carries an extension the
// corpus loader accepts. The check is by extension only; contents are
// validated on decode.
func SupportedExtension(name string) bool {
	switch filepath.Ext(name) {
	case ".jpg", ".jpeg", ".jfif", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return true
	}
	return false
}
