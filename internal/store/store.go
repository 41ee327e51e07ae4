// Package store holds the persistence boundaries of the evaluator: an object
// store for image bytes and reports, and a record store for detection and
// preprocessing records.
//
// Both are small interfaces so runs can use local directories and SQLite in
// production and in-memory maps in tests.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key or record does not exist.
var ErrNotFound = errors.New("not found")

// ObjectStore is a flat key/value byte store, addressed by slash-separated
// keys such as "1_aZ3kQ9xL/blurred_9.jfif".
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns every key with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	// URL returns the address a stored object is reachable at.
	URL(key string) string
}

// Predicate selects detection records.
type Predicate func(*DetectionRecord) bool

// ByDetected selects records whose verdict equals detected.
func ByDetected(detected bool) Predicate {
	return func(r *DetectionRecord) bool {
		return r.Detected == detected
	}
}

// RecordStore persists detection records keyed by ID. Put overwrites.
type RecordStore interface {
	Put(ctx context.Context, rec *DetectionRecord) error
	Get(ctx context.Context, id string) (*DetectionRecord, error)
	// Scan returns every record, ordered by ID.
	Scan(ctx context.Context) ([]*DetectionRecord, error)
	// Filter returns the records matching pred, ordered by ID.
	Filter(ctx context.Context, pred Predicate) ([]*DetectionRecord, error)
	Count(ctx context.Context) (int, error)
}

// PreprocessingStore persists preprocessing records keyed by ID. Put
// overwrites.
type PreprocessingStore interface {
	PutPreprocessing(ctx context.Context, rec *PreprocessingRecord) error
	GetPreprocessing(ctx context.Context, id string) (*PreprocessingRecord, error)
}
