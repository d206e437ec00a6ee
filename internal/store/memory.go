// Package store holds the in-memory dataset cache behind the surveillance
// Store interface.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/jmtatsch/virus-radar/internal/surveillance"
)

// MemoryStore is a concurrency-safe in-memory dataset cache. Datasets are
// swapped wholesale on refresh; readers always see a complete, consistent
// dataset or an unavailable error.
type MemoryStore struct {
	mu sync.RWMutex

	incidence  *surveillance.IncidenceDataset
	wastewater *surveillance.WastewaterDataset

	incidenceLoadedAt  time.Time
	wastewaterLoadedAt time.Time
}

// NewMemoryStore creates an empty MemoryStore. Both datasets report
// unavailable until their first successful refresh.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Incidence returns the current GrippeWeb dataset.
func (s *MemoryStore) Incidence() (*surveillance.IncidenceDataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.incidence == nil {
		return nil, fmt.Errorf("%w: grippeweb not loaded", surveillance.ErrDatasetUnavailable)
	}
	return s.incidence, nil
}

// Wastewater returns the current AMELAG dataset.
func (s *MemoryStore) Wastewater() (*surveillance.WastewaterDataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.wastewater == nil {
		return nil, fmt.Errorf("%w: amelag not loaded", surveillance.ErrDatasetUnavailable)
	}
	return s.wastewater, nil
}

// SetIncidence replaces the GrippeWeb dataset.
func (s *MemoryStore) SetIncidence(ds *surveillance.IncidenceDataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidence = ds
	s.incidenceLoadedAt = time.Now().UTC()
}

// SetWastewater replaces the AMELAG dataset.
func (s *MemoryStore) SetWastewater(ds *surveillance.WastewaterDataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wastewater = ds
	s.wastewaterLoadedAt = time.Now().UTC()
}

// LoadedAt reports when each dataset was last stored; zero times mean never.
func (s *MemoryStore) LoadedAt() (incidence, wastewater time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.incidenceLoadedAt, s.wastewaterLoadedAt
}
