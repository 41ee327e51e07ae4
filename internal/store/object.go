package store

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FSObjects stores objects as files below a root directory.
type FSObjects struct {
	root    string
	baseURL string
}

// NewFSObjects creates the root directory if needed. baseURL prefixes the
// keys returned by URL; when empty, file:// URLs of the absolute root are
// used.
func NewFSObjects(root, baseURL string) (*FSObjects, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve object root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create object root: %w", err)
	}
	if baseURL == "" {
		baseURL = "file://" + filepath.ToSlash(abs)
	}
	return &FSObjects{root: abs, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Root returns the absolute root directory.
func (s *FSObjects) Root() string {
	return s.root
}

func (s *FSObjects) path(key string) (string, error) {
	p := filepath.FromSlash(key)
	if key == "" || !filepath.IsLocal(p) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, p), nil
}

func (s *FSObjects) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	// Write to a temp file first so a reader never sees a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}
	return nil
}

func (s *FSObjects) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

func (s *FSObjects) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FSObjects) URL(key string) string {
	return s.baseURL + "/" + key
}

// MemoryObjects is an in-memory ObjectStore.
type MemoryObjects struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

// NewMemoryObjects creates an empty store whose URLs start with
// "mem://{bucket}/".
func NewMemoryObjects(bucket string) *MemoryObjects {
	return &MemoryObjects{
		objects: make(map[string][]byte),
		baseURL: "mem://" + bucket,
	}
}

func (s *MemoryObjects) Put(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return fmt.Errorf("invalid object key %q", key)
	}
	s.mu.Lock()
	s.objects[key] = append([]byte(nil), data...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryObjects) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryObjects) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryObjects) URL(key string) string {
	return s.baseURL + "/" + key
}

// Len returns the number of stored objects.
func (s *MemoryObjects) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

var (
	_ ObjectStore = (*FSObjects)(nil)
	_ ObjectStore = (*MemoryObjects)(nil)
)
