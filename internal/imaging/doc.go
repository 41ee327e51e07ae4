// Package imaging provides the pixel-level kernels behind the perturbation
// battery: percent scaling, box blur, gamma lookup tables and salt-and-pepper
// noise, plus source decoding and JPEG encoding.
//
// All functions work with standard Go image.Image values and never modify
// their input; each returns a freshly allocated image.
//
// # Determinism
//
// Scale, BoxBlur and AdjustGamma are pure: the same input and parameter always
// yield the same pixels, and EncodeJPEG turns the same pixels into the same
// bytes. SaltAndPepper is pure given the state of the *rand.Rand it is handed;
// determinism there is the caller's responsibility.
//
// # Interpolation
//
// Every resize in this package uses bilinear interpolation. There is
// deliberately no way to select another filter per call, so scale variants
// across a corpus are always comparable.
//
// # Border Handling
//
// BoxBlur samples outside the image by replicating the nearest edge pixel.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The transforms are stateless and can
// be called concurrently on the same source image.
//
// # Error Handling
//
// Functions return errors for invalid parameters (even blur kernels,
// non-positive gamma, probabilities outside [0, 1]), for scale factors that
// collapse a dimension to zero, and for decode/encode failures.
package imaging
