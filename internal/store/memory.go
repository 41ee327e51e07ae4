package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryRecords is an in-memory RecordStore and PreprocessingStore.
type MemoryRecords struct {
	mu            sync.RWMutex
	detections    map[string]*DetectionRecord
	preprocessing map[string]*PreprocessingRecord
}

// NewMemoryRecords creates an empty store.
func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{
		detections:    make(map[string]*DetectionRecord),
		preprocessing: make(map[string]*PreprocessingRecord),
	}
}

func (s *MemoryRecords) Put(ctx context.Context, rec *DetectionRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("detection record requires an id")
	}
	s.mu.Lock()
	s.detections[rec.ID] = rec.clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryRecords) Get(ctx context.Context, id string) (*DetectionRecord, error) {
	s.mu.RLock()
	rec, ok := s.detections[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("detection record %s: %w", id, ErrNotFound)
	}
	return rec.clone(), nil
}

func (s *MemoryRecords) Scan(ctx context.Context) ([]*DetectionRecord, error) {
	return s.Filter(ctx, nil)
}

func (s *MemoryRecords) Filter(ctx context.Context, pred Predicate) ([]*DetectionRecord, error) {
	s.mu.RLock()
	out := make([]*DetectionRecord, 0, len(s.detections))
	for _, rec := range s.detections {
		if pred == nil || pred(rec) {
			out = append(out, rec.clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryRecords) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.detections), nil
}

func (s *MemoryRecords) PutPreprocessing(ctx context.Context, rec *PreprocessingRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("preprocessing record requires an id")
	}
	s.mu.Lock()
	s.preprocessing[rec.ID] = rec.clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryRecords) GetPreprocessing(ctx context.Context, id string) (*PreprocessingRecord, error) {
	s.mu.RLock()
	rec, ok := s.preprocessing[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("preprocessing record %s: %w", id, ErrNotFound)
	}
	return rec.clone(), nil
}

var (
	_ RecordStore        = (*MemoryRecords)(nil)
	_ PreprocessingStore = (*MemoryRecords)(nil)
)
