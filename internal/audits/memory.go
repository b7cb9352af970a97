package audits

import (
	"context"
	"sort"
	"sync"

	"github.com/auditdesk/auditdesk/internal/models"
)

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu         sync.RWMutex
	audits     map[string]models.Audit
	responses  []models.AuditResponse
	photos     []models.AuditPhoto
	categories []models.ChecklistCategory
	items      []models.ChecklistItem
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{audits: map[string]models.Audit{}}
}

// SeedChecklist replaces the checklist.
func (m *MemoryRepo) SeedChecklist(categories []models.ChecklistCategory, items []models.ChecklistItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = append([]models.ChecklistCategory(nil), categories...)
	m.items = append([]models.ChecklistItem(nil), items...)
}

func (m *MemoryRepo) matching(f Filter) []models.Audit {
	out := []models.Audit{}
	for _, a := range m.audits {
		if f.StoreID != "" && a.StoreID != f.StoreID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.StoreIDs != nil && !contains(f.StoreIDs, a.StoreID) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MemoryRepo) List(ctx context.Context, f Filter) ([]models.Audit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.matching(f)
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryRepo) Count(ctx context.Context, f Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.matching(f))), nil
}

func (m *MemoryRepo) Get(ctx context.Context, id string) (*models.Audit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.audits[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *MemoryRepo) Categories(ctx context.Context) ([]models.ChecklistCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]models.ChecklistCategory(nil), m.categories...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *MemoryRepo) Items(ctx context.Context) ([]models.ChecklistItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]models.ChecklistItem(nil), m.items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *MemoryRepo) InsertAudit(ctx context.Context, a *models.Audit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits[a.ID] = *a
	return nil
}

func (m *MemoryRepo) InsertResponses(ctx context.Context, rs []models.AuditResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, rs...)
	return nil
}

func (m *MemoryRepo) InsertPhoto(ctx context.Context, p *models.AuditPhoto) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos = append(m.photos, *p)
	return nil
}

func (m *MemoryRepo) Responses(ctx context.Context, auditID string) ([]models.AuditResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.AuditResponse{}
	for _, r := range m.responses {
		if r.AuditID == auditID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryRepo) Photos(ctx context.Context, auditID string) ([]models.AuditPhoto, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.AuditPhoto{}
	for _, p := range m.photos {
		if p.AuditID == auditID {
			out = append(out, p)
		}
	}
	return out, nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
