package stores

import (
	"context"
	"sort"
	"sync"

	"github.com/auditdesk/auditdesk/internal/models"
)

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu     sync.RWMutex
	stores map[string]models.Store
	zones  map[string]models.Zone
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{stores: map[string]models.Store{}, zones: map[string]models.Zone{}}
}

// AddZone seeds a zone.
func (m *MemoryRepo) AddZone(z models.Zone) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones[z.ID] = z
}

func (m *MemoryRepo) List(ctx context.Context) ([]models.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Store, 0, len(m.stores))
	for _, s := range m.stores {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryRepo) Get(ctx context.Context, id string) (*models.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stores[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryRepo) Insert(ctx context.Context, s *models.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[s.ID] = *s
	return nil
}

func (m *MemoryRepo) Update(ctx context.Context, s *models.Store) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.stores[s.ID]
	if !ok {
		return false, nil
	}
	cur.Name, cur.Address, cur.ZoneID = s.Name, s.Address, s.ZoneID
	m.stores[s.ID] = cur
	return true, nil
}

func (m *MemoryRepo) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stores[id]; !ok {
		return false, nil
	}
	delete(m.stores, id)
	return true, nil
}

func (m *MemoryRepo) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.stores)), nil
}

func (m *MemoryRepo) Zones(ctx context.Context) ([]models.Zone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Zone, 0, len(m.zones))
	for _, z := range m.zones {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
