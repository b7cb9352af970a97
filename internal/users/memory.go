package users

import (
	"context"
	"sort"
	"sync"

	"github.com/auditdesk/auditdesk/internal/models"
)

// MemoryRepo is an in-memory ProfileRepository for tests and local runs.
type MemoryRepo struct {
	mu       sync.RWMutex
	profiles map[string]models.Profile
}

func NewMemoryRepo(seed ...models.Profile) *MemoryRepo {
	m := &MemoryRepo{profiles: map[string]models.Profile{}}
	for _, p := range seed {
		m.profiles[p.ID] = p
	}
	return m
}

func (m *MemoryRepo) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryRepo) List(ctx context.Context) ([]models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m *MemoryRepo) Insert(ctx context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = *p
	return nil
}

func (m *MemoryRepo) Update(ctx context.Context, p *models.Profile) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.profiles[p.ID]
	if !ok {
		return false, nil
	}
	cur.Email, cur.FullName, cur.Role, cur.StoreID = p.Email, p.FullName, p.Role, p.StoreID
	m.profiles[p.ID] = cur
	return true, nil
}

func (m *MemoryRepo) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[id]; !ok {
		return false, nil
	}
	delete(m.profiles, id)
	return true, nil
}
