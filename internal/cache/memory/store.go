package memory

import (
	"context"
	"sync"

	"github.com/rag-dashboard/backend/internal/storage/models"
)

// Store keeps parsed reports in process memory. Stored reports are shared
// between readers and must be treated as read-only.
type Store struct {
	mu      sync.RWMutex
	reports map[string]*models.Report
}

func NewStore() *Store {
	return &Store{reports: make(map[string]*models.Report)}
}

func (s *Store) GetReport(_ context.Context, fingerprint string) (*models.Report, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[fingerprint]
	return r, ok, nil
}

func (s *Store) SetReport(_ context.Context, fingerprint string, report *models.Report) error {
	s.mu.Lock()
	s.reports[fingerprint] = report
	s.mu.Unlock()
	return nil
}

func (s *Store) Purge(context.Context) error {
	s.mu.Lock()
	s.reports = make(map[string]*models.Report)
	s.mu.Unlock()
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}
