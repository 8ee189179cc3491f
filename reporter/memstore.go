package reporter

import (
	"fmt"
	"path"
	"sync"
)

// MemStore is an in-memory Storage. AppendErr and ImageErr, when set, are returned by
// the matching call so callers can exercise failure paths.
type MemStore struct {
	mu        sync.RWMutex
	ensured   int
	reports   []HazardReport
	images    map[string][]byte
	AppendErr error
	ImageErr  error
}

func NewMemStore() *MemStore {
	return &MemStore{images: make(map[string][]byte)}
}

func (s *MemStore) Ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensured++
	return nil
}

func (s *MemStore) Append(r HazardReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return s.AppendErr
	}
	s.reports = append(s.reports, r)
	return nil
}

func (s *MemStore) SaveImage(data []byte, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ImageErr != nil {
		return "", s.ImageErr
	}
	p := path.Join("uploads", name)
	if _, ok := s.images[p]; ok {
		return "", fmt.Errorf("%w: %s", ErrImageExists, p)
	}
	s.images[p] = append([]byte(nil), data...)
	return p, nil
}

// Reports returns a copy of the appended records in append order.
func (s *MemStore) Reports() []HazardReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]HazardReport, len(s.reports))
	copy(out, s.reports)
	return out
}

// Image returns the bytes stored under path p.
func (s *MemStore) Image(p string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.images[p]
	return b, ok
}

func (s *MemStore) ImageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}

func (s *MemStore) EnsureCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ensured
}
