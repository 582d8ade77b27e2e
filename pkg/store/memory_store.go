package store

import (
	"sort"
	"sync"

	"github.com/rzbill/stencil/pkg/types"
)

// MemoryStore is an in-memory Store for tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*types.Report
}

// NewMemoryStore creates an empty in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]*types.Report)}
}

func (s *MemoryStore) SaveReport(report *types.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *report
	s.reports[report.RunID] = &copied
	return nil
}

func (s *MemoryStore) GetReport(runID string) (*types.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[runID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *report
	return &copied, nil
}

func (s *MemoryStore) ListReports(limit int) ([]*types.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]*types.Report, 0, len(s.reports))
	for _, r := range s.reports {
		copied := *r
		reports = append(reports, &copied)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].StartedAt.After(reports[j].StartedAt)
	})
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
