// Package stores manages the store directory and the zones stores belong to.
package stores

import (
	"context"
	"strings"
	"time"

	"github.com/auditdesk/auditdesk/internal/apperrors"
	"github.com/auditdesk/auditdesk/internal/models"
	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(r Repository) *Service {
	return &Service{repo: r}
}

// Input is the editable part of a store.
type Input struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	ZoneID  string `json:"zone_id"`
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.New(apperrors.KindInvalidInput, "store name is required")
	}
	if strings.TrimSpace(in.ZoneID) == "" {
		return apperrors.New(apperrors.KindInvalidInput, "zone is required")
	}
	return nil
}

// List returns all stores ordered by name with their zone attached.
func (s *Service) List(ctx context.Context) ([]models.Store, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.DataAccess("list stores", err)
	}
	zones, err := s.repo.Zones(ctx)
	if err != nil {
		return nil, apperrors.DataAccess("list zones", err)
	}
	byID := make(map[string]*models.Zone, len(zones))
	for i := range zones {
		byID[zones[i].ID] = &zones[i]
	}
	for i := range list {
		list[i].Zone = byID[list[i].ZoneID]
	}
	return list, nil
}

// Get returns one store, or a not-found error.
func (s *Service) Get(ctx context.Context, id string) (*models.Store, error) {
	st, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.DataAccess("get store", err)
	}
	if st == nil {
		return nil, apperrors.New(apperrors.KindNotFound, "store not found")
	}
	return st, nil
}

// Names maps store id to name for joining onto audit rows.
func (s *Service) Names(ctx context.Context) (map[string]*models.Store, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.DataAccess("list stores", err)
	}
	out := make(map[string]*models.Store, len(list))
	for i := range list {
		out[list[i].ID] = &list[i]
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, in Input) (*models.Store, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	st := &models.Store{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Address:   strings.TrimSpace(in.Address),
		ZoneID:    in.ZoneID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, st); err != nil {
		return nil, apperrors.DataAccess("create store", err)
	}
	return st, nil
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*models.Store, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	st := &models.Store{ID: id, Name: strings.TrimSpace(in.Name), Address: strings.TrimSpace(in.Address), ZoneID: in.ZoneID}
	found, err := s.repo.Update(ctx, st)
	if err != nil {
		return nil, apperrors.DataAccess("update store", err)
	}
	if !found {
		return nil, apperrors.New(apperrors.KindNotFound, "store not found")
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return apperrors.DataAccess("delete store", err)
	}
	if !found {
		return apperrors.New(apperrors.KindNotFound, "store not found")
	}
	return nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, apperrors.DataAccess("count stores", err)
	}
	return int(n), nil
}

func (s *Service) Zones(ctx context.Context) ([]models.Zone, error) {
	z, err := s.repo.Zones(ctx)
	if err != nil {
		return nil, apperrors.DataAccess("list zones", err)
	}
	return z, nil
}
