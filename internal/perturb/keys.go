package perturb

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

// SuffixLength is the length of the random folder suffix.
const SuffixLength = 8

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// SuffixFunc produces the random suffix that makes one preprocessing run's
// storage folder unique, e.g. "aZ3kQ9xL".
type SuffixFunc func() string

// RandomSuffix draws SuffixLength characters from letters and digits using
// the process-wide random source.
func RandomSuffix() string {
	return randomSuffix(rand.IntN)
}

// SeededSuffix returns a SuffixFunc drawing from r. The returned function
// is safe for concurrent use; r must not be used elsewhere.
func SeededSuffix(r *rand.Rand) SuffixFunc {
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return randomSuffix(r.IntN)
	}
}

// FixedSuffix always returns s. Useful when a run must be reproduced at a
// known storage location.
func FixedSuffix(s string) SuffixFunc {
	return func() string { return s }
}

func randomSuffix(intn func(int) int) string {
	var b strings.Builder
	b.Grow(SuffixLength)
	for i := 0; i < SuffixLength; i++ {
		b.WriteByte(suffixAlphabet[intn(len(suffixAlphabet))])
	}
	return b.String()
}

// ValidateSuffix rejects suffixes that would break ground-truth key
// recovery: the suffix is the last underscore-delimited field of the
// folder name, so it may not be empty or contain '_' or '/'.
func ValidateSuffix(suffix string) error {
	if suffix == "" {
		return fmt.Errorf("storage suffix must not be empty")
	}
	if strings.ContainsAny(suffix, "_/") {
		return fmt.Errorf("storage suffix %q must not contain '_' or '/'", suffix)
	}
	return nil
}

// SplitSourceID splits a source file name into base name and extension at
// the last dot: "1.jfif" -> ("1", "jfif").
func SplitSourceID(id string) (base, ext string, err error) {
	if strings.Contains(id, "/") {
		return "", "", fmt.Errorf("source id %q must be a file name, not a path", id)
	}
	i := strings.LastIndexByte(id, '.')
	if i <= 0 || i == len(id)-1 {
		return "", "", fmt.Errorf("source id %q must have the form name.ext", id)
	}
	return id[:i], id[i+1:], nil
}

// FolderName returns the per-run storage folder "{base}_{suffix}". It is
// also the identity of the run's preprocessing record.
func FolderName(sourceID, suffix string) (string, error) {
	base, _, err := SplitSourceID(sourceID)
	if err != nil {
		return "", err
	}
	if err := ValidateSuffix(suffix); err != nil {
		return "", err
	}
	return base + "_" + suffix, nil
}

// StorageKey returns the object key of one variant:
//
//	"{base}_{suffix}/{op}_{param}.{ext}"
//
// The extension is the source's, not the encoding's: variants are JPEG
// bytes stored under the original extension so the ground-truth lookup key
// can be recovered from the object key alone.
func StorageKey(sourceID, suffix string, s Spec) (string, error) {
	folder, err := FolderName(sourceID, suffix)
	if err != nil {
		return "", err
	}
	_, ext, _ := SplitSourceID(sourceID)
	return folder + "/" + s.Key() + "." + ext, nil
}
