package users

import (
	"context"
	"strings"
	"time"

	"github.com/auditdesk/auditdesk/internal/apperrors"
	"github.com/auditdesk/auditdesk/internal/models"
	"github.com/google/uuid"
)

// StoreLookup resolves the store a profile is assigned to.
type StoreLookup interface {
	Names(ctx context.Context) (map[string]*models.Store, error)
}

// Service encapsulates profile management.
type Service struct {
	repo   ProfileRepository
	stores StoreLookup
}

func NewService(r ProfileRepository, stores StoreLookup) *Service {
	return &Service{repo: r, stores: stores}
}

// Input is the editable part of a profile. An empty StoreID means no store.
type Input struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	FullName string      `json:"full_name"`
	Role     models.Role `json:"role"`
	StoreID  string      `json:"store_id"`
}

func (in Input) validate() error {
	switch {
	case strings.TrimSpace(in.FullName) == "":
		return apperrors.New(apperrors.KindInvalidInput, "full name is required")
	case strings.TrimSpace(in.Email) == "":
		return apperrors.New(apperrors.KindInvalidInput, "email is required")
	case !in.Role.Valid():
		return apperrors.New(apperrors.KindInvalidInput, "unknown role "+string(in.Role))
	case in.Role == models.RoleStoreManager && in.StoreID == "":
		return apperrors.New(apperrors.KindInvalidInput, "a store manager needs an assigned store")
	}
	return nil
}

func (in Input) profile(id string) *models.Profile {
	p := &models.Profile{
		ID:       id,
		Email:    strings.TrimSpace(in.Email),
		FullName: strings.TrimSpace(in.FullName),
		Role:     in.Role,
	}
	if in.StoreID != "" {
		sid := in.StoreID
		p.StoreID = &sid
	}
	return p
}

// GetProfile returns the profile for an identity with its store attached, or
// (nil, nil) when the identity has no profile row.
func (s *Service) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.DataAccess("get profile", err)
	}
	if p == nil {
		return nil, nil
	}
	if p.StoreID != nil && s.stores != nil {
		names, err := s.stores.Names(ctx)
		if err != nil {
			return nil, err
		}
		p.Store = names[*p.StoreID]
	}
	return p, nil
}

// List returns all profiles ordered by full name with stores attached.
func (s *Service) List(ctx context.Context) ([]models.Profile, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.DataAccess("list profiles", err)
	}
	if s.stores == nil {
		return list, nil
	}
	names, err := s.stores.Names(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].StoreID != nil {
			list[i].Store = names[*list[i].StoreID]
		}
	}
	return list, nil
}

// Create inserts a profile. Without an explicit ID a new one is generated.
func (s *Service) Create(ctx context.Context, in Input) (*models.Profile, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	p := in.profile(id)
	p.CreatedAt = time.Now().UTC()
	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, apperrors.DataAccess("create profile", err)
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, id string, in Input) (*models.Profile, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	found, err := s.repo.Update(ctx, in.profile(id))
	if err != nil {
		return nil, apperrors.DataAccess("update profile", err)
	}
	if !found {
		return nil, apperrors.New(apperrors.KindNotFound, "profile not found")
	}
	return s.GetProfile(ctx, id)
}

// Rename changes only the display name of a profile.
func (s *Service) Rename(ctx context.Context, id, fullName string) (*models.Profile, error) {
	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.DataAccess("get profile", err)
	}
	if cur == nil {
		return nil, apperrors.New(apperrors.KindNotFound, "profile not found")
	}
	in := Input{Email: cur.Email, FullName: fullName, Role: cur.Role}
	if cur.StoreID != nil {
		in.StoreID = *cur.StoreID
	}
	return s.Update(ctx, id, in)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return apperrors.DataAccess("delete profile", err)
	}
	if !found {
		return apperrors.New(apperrors.KindNotFound, "profile not found")
	}
	return nil
}
