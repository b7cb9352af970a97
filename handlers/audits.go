package handlers

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/auditdesk/auditdesk/internal/audits"
	"github.com/auditdesk/auditdesk/internal/auth"
	"github.com/auditdesk/auditdesk/internal/models"
	"github.com/auditdesk/auditdesk/internal/reports"
	"github.com/auditdesk/auditdesk/internal/stores"
	"github.com/auditdesk/auditdesk/pkg/middleware"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	recentAudits  = 5
	maxPhotoBytes = 32 << 20
)

// AuditHandler serves the dashboard, checklist, audit history and reports.
type AuditHandler struct {
	audits *audits.Service
	stores *stores.Service
}

func NewAuditHandler(a *audits.Service, s *stores.Service) *AuditHandler {
	return &AuditHandler{audits: a, stores: s}
}

// Register routes on a group that already requires a session.
func (h *AuditHandler) Register(api *gin.RouterGroup) {
	api.GET("/dashboard", middleware.RequireCapability(auth.ViewDashboard), h.Dashboard)
	api.GET("/checklist", middleware.RequireCapability(auth.CreateAudit), h.Checklist)
	api.POST("/audits", middleware.RequireCapability(auth.CreateAudit), h.Submit)
	api.GET("/audits", h.List)
	api.GET("/audits/:id", h.Get)
	api.GET("/reports", middleware.RequireCapability(auth.ViewReports), h.Reports)
	api.GET("/reports/export", middleware.RequireCapability(auth.ExportReports), h.Export)
}

func viewer(c *gin.Context) *models.Profile {
	snap, _ := middleware.SnapshotFrom(c)
	return snap.Profile
}

// Dashboard reads KPI inputs and the most recent audits in parallel.
func (h *AuditHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	p := viewer(c)

	var (
		all        []models.Audit
		recent     []models.Audit
		storeCount int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		all, err = h.audits.List(gctx, p, audits.Filter{})
		return err
	})
	g.Go(func() (err error) {
		recent, err = h.audits.List(gctx, p, audits.Filter{Limit: recentAudits})
		return err
	})
	g.Go(func() (err error) {
		storeCount, err = h.stores.Count(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":  reports.Dashboard(all, storeCount),
		"recent": recent,
	})
}

func (h *AuditHandler) Checklist(c *gin.Context) {
	cats, err := h.audits.Checklist(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": cats})
}

// List returns the audit history. Store managers only get their store.
func (h *AuditHandler) List(c *gin.Context) {
	f := audits.Filter{
		StoreID:   c.Query("store_id"),
		Status:    models.AuditStatus(c.Query("status")),
		StoreName: c.Query("q"),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	list, err := h.audits.List(c.Request.Context(), viewer(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audits": list})
}

func (h *AuditHandler) Get(c *gin.Context) {
	d, err := h.audits.Get(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Submit records a completed audit from a multipart form: store_id, notes,
// answers (a JSON array of {item_id, compliant, observation}) and any number
// of photos files.
func (h *AuditHandler) Submit(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxPhotoBytes); err != nil {
		badRequest(c, "expected a multipart form")
		return
	}
	sub := audits.Submission{
		StoreID: c.PostForm("store_id"),
		Notes:   c.PostForm("notes"),
	}
	if raw := c.PostForm("answers"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &sub.Answers); err != nil {
			badRequest(c, "answers must be a JSON array")
			return
		}
	}

	var files []*multipart.FileHeader
	if c.Request.MultipartForm != nil {
		files = c.Request.MultipartForm.File["photos"]
	}
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			badRequest(c, "unreadable photo "+fh.Filename)
			return
		}
		defer f.Close()
		sub.Photos = append(sub.Photos, audits.Photo{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}

	res, err := h.audits.Submit(c.Request.Context(), viewer(c), sub)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *AuditHandler) completed(c *gin.Context) ([]reports.StoreReport, bool) {
	list, err := h.audits.List(c.Request.Context(), viewer(c), audits.Filter{Status: models.AuditCompleted})
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return reports.PerStoreReport(list), true
}

func (h *AuditHandler) Reports(c *gin.Context) {
	rows, ok := h.completed(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"stores": rows})
}

// Export streams the per-store report as an XLSX workbook.
func (h *AuditHandler) Export(c *gin.Context) {
	rows, ok := h.completed(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="store-reports.xlsx"`)
	c.Status(http.StatusOK)
	if err := reports.WriteXLSX(c.Writer, rows); err != nil {
		_ = c.Error(err)
	}
}
