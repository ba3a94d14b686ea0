package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vyaparbazaar/featurex/pkg/db/models"
)

// StateStore keeps watermarks, run history and validation reports in memory.
type StateStore struct {
	mu          sync.RWMutex
	watermarks  map[string]*models.Watermark
	runs        []*models.RunReport
	validations map[string]*models.ValidationReport
}

func NewStateStore() *StateStore {
	return &StateStore{
		watermarks:  map[string]*models.Watermark{},
		validations: map[string]*models.ValidationReport{},
	}
}

func (s *StateStore) Watermark(_ context.Context, stage string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if w, ok := s.watermarks[stage]; ok {
		return w.Watermark, nil
	}
	return time.Time{}, nil
}

func (s *StateStore) Commit(_ context.Context, stage string, watermark time.Time, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Watermarks never move backward.
	if w, ok := s.watermarks[stage]; ok && w.Watermark.After(watermark) {
		return nil
	}
	s.watermarks[stage] = &models.Watermark{
		Stage:       stage,
		Watermark:   watermark,
		RunID:       runID,
		CommittedAt: time.Now().UTC(),
	}
	return nil
}

func (s *StateStore) RecordRun(_ context.Context, report *models.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, report)
	return nil
}

func (s *StateStore) RecordValidation(_ context.Context, report *models.ValidationReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validations[report.Table] = report
	return nil
}

func (s *StateStore) LastRun(_ context.Context, stage string) (*models.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].Stage == stage {
			return s.runs[i], nil
		}
	}
	return nil, nil
}

func (s *StateStore) LastValidation(_ context.Context, stage string) (*models.ValidationReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validations[stage], nil
}

func (s *StateStore) RecentRuns(_ context.Context, limit int) ([]*models.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.runs) {
		limit = len(s.runs)
	}
	out := make([]*models.RunReport, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}
