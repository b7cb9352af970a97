// Package audits lists audits, serves the checklist and records completed
// audits with their answers and photos.
package audits

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/auditdesk/auditdesk/internal/apperrors"
	"github.com/auditdesk/auditdesk/internal/models"
	"github.com/auditdesk/auditdesk/internal/reports"
	"github.com/auditdesk/auditdesk/pkg/logger"
	"github.com/auditdesk/auditdesk/pkg/metrics"
	"github.com/google/uuid"
)

// PhotoStore uploads photo bytes and returns a URL the photo can be read from.
type PhotoStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// StoreLookup resolves store ids to stores.
type StoreLookup interface {
	Names(ctx context.Context) (map[string]*models.Store, error)
}

// AuditorLookup resolves auditor profiles.
type AuditorLookup interface {
	List(ctx context.Context) ([]models.Profile, error)
}

type Service struct {
	repo     Repository
	stores   StoreLookup
	auditors AuditorLookup
	photos   PhotoStore
	log      *logger.Component
	now      func() time.Time
}

func NewService(repo Repository, stores StoreLookup, auditors AuditorLookup, photos PhotoStore) *Service {
	return &Service{
		repo:     repo,
		stores:   stores,
		auditors: auditors,
		photos:   photos,
		log:      logger.For("audits"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// scope restricts f to what viewer may see. Store managers only see their own
// store; one without a store sees nothing (ok is false).
func scope(viewer *models.Profile, f Filter) (Filter, bool) {
	if viewer == nil {
		return f, false
	}
	if viewer.Role != models.RoleStoreManager {
		return f, true
	}
	if viewer.StoreID == nil {
		return f, false
	}
	f.StoreID = *viewer.StoreID
	return f, true
}

// List returns the audits visible to viewer, newest first, with store and
// auditor attached.
func (s *Service) List(ctx context.Context, viewer *models.Profile, f Filter) ([]models.Audit, error) {
	f, ok := scope(viewer, f)
	if !ok {
		return []models.Audit{}, nil
	}
	f, err := s.byStoreName(ctx, f)
	if err != nil {
		return nil, err
	}
	if f.StoreIDs != nil && len(f.StoreIDs) == 0 {
		return []models.Audit{}, nil
	}
	list, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, apperrors.DataAccess("list audits", err)
	}
	if err := s.join(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// byStoreName turns f.StoreName into the ids of the matching stores.
func (s *Service) byStoreName(ctx context.Context, f Filter) (Filter, error) {
	q := strings.ToLower(strings.TrimSpace(f.StoreName))
	if q == "" {
		return f, nil
	}
	f.StoreIDs = []string{}
	if s.stores == nil {
		return f, nil
	}
	names, err := s.stores.Names(ctx)
	if err != nil {
		return f, apperrors.DataAccess("search stores", err)
	}
	for id, st := range names {
		if st != nil && strings.Contains(strings.ToLower(st.Name), q) {
			f.StoreIDs = append(f.StoreIDs, id)
		}
	}
	return f, nil
}

// Count counts the audits visible to viewer.
func (s *Service) Count(ctx context.Context, viewer *models.Profile, f Filter) (int, error) {
	f, ok := scope(viewer, f)
	if !ok {
		return 0, nil
	}
	n, err := s.repo.Count(ctx, f)
	if err != nil {
		return 0, apperrors.DataAccess("count audits", err)
	}
	return int(n), nil
}

func (s *Service) join(ctx context.Context, list []models.Audit) error {
	if len(list) == 0 {
		return nil
	}
	if s.stores != nil {
		names, err := s.stores.Names(ctx)
		if err != nil {
			return err
		}
		for i := range list {
			list[i].Store = names[list[i].StoreID]
		}
	}
	if s.auditors != nil {
		profiles, err := s.auditors.List(ctx)
		if err != nil {
			return err
		}
		byID := make(map[string]*models.Profile, len(profiles))
		for i := range profiles {
			byID[profiles[i].ID] = &profiles[i]
		}
		for i := range list {
			list[i].Auditor = byID[list[i].AuditorID]
		}
	}
	return nil
}

// Detail is one audit with its answers and photos.
type Detail struct {
	Audit     models.Audit           `json:"audit"`
	Responses []models.AuditResponse `json:"responses"`
	Photos    []models.AuditPhoto    `json:"photos"`
}

// Get returns one audit visible to viewer.
func (s *Service) Get(ctx context.Context, viewer *models.Profile, id string) (*Detail, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.DataAccess("get audit", err)
	}
	if a == nil {
		return nil, apperrors.New(apperrors.KindNotFound, "audit not found")
	}
	if f, ok := scope(viewer, Filter{}); !ok || (f.StoreID != "" && f.StoreID != a.StoreID) {
		return nil, apperrors.New(apperrors.KindNotFound, "audit not found")
	}
	one := []models.Audit{*a}
	if err := s.join(ctx, one); err != nil {
		return nil, err
	}
	d := &Detail{Audit: one[0]}
	if d.Responses, err = s.repo.Responses(ctx, id); err != nil {
		return nil, apperrors.DataAccess("list audit responses", err)
	}
	if d.Photos, err = s.repo.Photos(ctx, id); err != nil {
		return nil, apperrors.DataAccess("list audit photos", err)
	}
	return d, nil
}

// Checklist returns categories ordered by order_index, each with its items in order.
func (s *Service) Checklist(ctx context.Context) ([]models.ChecklistCategory, error) {
	cats, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, apperrors.DataAccess("list checklist categories", err)
	}
	items, err := s.repo.Items(ctx)
	if err != nil {
		return nil, apperrors.DataAccess("list checklist items", err)
	}
	byCat := make(map[string][]models.ChecklistItem, len(cats))
	for _, it := range items {
		byCat[it.CategoryID] = append(byCat[it.CategoryID], it)
	}
	for i := range cats {
		cats[i].Items = byCat[cats[i].ID]
		if cats[i].Items == nil {
			cats[i].Items = []models.ChecklistItem{}
		}
	}
	return cats, nil
}

// Answer is one checklist response. A nil Compliant means unanswered.
type Answer struct {
	ItemID      string `json:"item_id"`
	Compliant   *bool  `json:"compliant"`
	Observation string `json:"observation"`
}

// Photo is an uploaded picture attached to a submission.
type Photo struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Submission is a completed audit as entered by the auditor.
type Submission struct {
	StoreID string
	Notes   string
	Answers []Answer
	Photos  []Photo
}

// SubmitResult reports what was recorded. Photos that failed to upload are
// counted in SkippedPhotos and not recorded.
type SubmitResult struct {
	Audit         models.Audit        `json:"audit"`
	Photos        []models.AuditPhoto `json:"photos"`
	SkippedPhotos int                 `json:"skipped_photos"`
}

// Submit scores and records a completed audit. The score is the share of all
// checklist items answered compliant, so unanswered items count against it.
func (s *Service) Submit(ctx context.Context, auditor *models.Profile, sub Submission) (*SubmitResult, error) {
	if auditor == nil {
		return nil, apperrors.New(apperrors.KindForbidden, "no profile")
	}
	if sub.StoreID == "" {
		return nil, apperrors.New(apperrors.KindInvalidInput, "store is required")
	}
	if scoped, ok := scope(auditor, Filter{}); !ok || (scoped.StoreID != "" && scoped.StoreID != sub.StoreID) {
		return nil, apperrors.New(apperrors.KindForbidden, "cannot audit a store you are not assigned to")
	}

	items, err := s.repo.Items(ctx)
	if err != nil {
		return nil, apperrors.DataAccess("list checklist items", err)
	}
	known := make(map[string]bool, len(items))
	for _, it := range items {
		known[it.ID] = true
	}

	now := s.now()
	auditID := uuid.NewString()
	var responses []models.AuditResponse
	seen := map[string]bool{}
	compliant := 0
	for _, a := range sub.Answers {
		if !known[a.ItemID] {
			return nil, apperrors.New(apperrors.KindInvalidInput, "unknown checklist item "+a.ItemID)
		}
		if a.Compliant == nil || seen[a.ItemID] {
			continue
		}
		seen[a.ItemID] = true
		if *a.Compliant {
			compliant++
		}
		r := models.AuditResponse{
			ID:              uuid.NewString(),
			AuditID:         auditID,
			ChecklistItemID: a.ItemID,
			Compliant:       *a.Compliant,
			CreatedAt:       now,
		}
		if obs := strings.TrimSpace(a.Observation); obs != "" {
			r.Observation = &obs
		}
		responses = append(responses, r)
	}

	score := reports.ChecklistScore(len(items), compliant)
	audit := models.Audit{
		ID:          auditID,
		StoreID:     sub.StoreID,
		AuditorID:   auditor.ID,
		Status:      models.AuditCompleted,
		Score:       &score,
		CreatedAt:   now,
		CompletedAt: &now,
	}
	if notes := strings.TrimSpace(sub.Notes); notes != "" {
		audit.Notes = &notes
	}
	if err := s.repo.InsertAudit(ctx, &audit); err != nil {
		metrics.RemoteWriteFailures.WithLabelValues("insert_audit").Inc()
		return nil, apperrors.DataAccess("save audit", err)
	}
	if len(responses) > 0 {
		if err := s.repo.InsertResponses(ctx, responses); err != nil {
			metrics.RemoteWriteFailures.WithLabelValues("insert_audit_responses").Inc()
			return nil, apperrors.DataAccess("save audit responses", err)
		}
	}

	res := &SubmitResult{Audit: audit, Photos: []models.AuditPhoto{}}
	for _, p := range sub.Photos {
		photo, err := s.storePhoto(ctx, auditID, p)
		if err != nil {
			s.log.Warnf("skipping photo %q for audit %s: %v", p.Name, auditID, err)
			res.SkippedPhotos++
			continue
		}
		res.Photos = append(res.Photos, *photo)
	}
	return res, nil
}

func (s *Service) storePhoto(ctx context.Context, auditID string, p Photo) (*models.AuditPhoto, error) {
	if s.photos == nil {
		return nil, fmt.Errorf("photo storage not configured")
	}
	key := fmt.Sprintf("%s/%d-%s", auditID, s.now().UnixNano(), path.Base(p.Name))
	url, err := s.photos.Upload(ctx, key, p.Body, p.Size, p.ContentType)
	if err != nil {
		metrics.RemoteWriteFailures.WithLabelValues("upload_photo").Inc()
		return nil, err
	}
	photo := &models.AuditPhoto{
		ID:        uuid.NewString(),
		AuditID:   auditID,
		PhotoURL:  url,
		CreatedAt: s.now(),
	}
	if err := s.repo.InsertPhoto(ctx, photo); err != nil {
		metrics.RemoteWriteFailures.WithLabelValues("insert_audit_photo").Inc()
		return nil, err
	}
	return photo, nil
}
