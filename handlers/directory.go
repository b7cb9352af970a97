package handlers

import (
	"net/http"

	"github.com/auditdesk/auditdesk/internal/auth"
	"github.com/auditdesk/auditdesk/internal/stores"
	"github.com/auditdesk/auditdesk/internal/users"
	"github.com/auditdesk/auditdesk/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// DirectoryHandler manages stores, zones and user profiles.
type DirectoryHandler struct {
	stores *stores.Service
	users  *users.Service
}

func NewDirectoryHandler(s *stores.Service, u *users.Service) *DirectoryHandler {
	return &DirectoryHandler{stores: s, users: u}
}

// Register routes on a group that already requires a session.
func (h *DirectoryHandler) Register(api *gin.RouterGroup) {
	view := middleware.RequireCapability(auth.ViewStores)
	manage := middleware.RequireCapability(auth.ManageStores)
	api.GET("/stores", view, h.ListStores)
	api.POST("/stores", manage, h.CreateStore)
	api.PUT("/stores/:id", manage, h.UpdateStore)
	api.DELETE("/stores/:id", manage, confirmed, h.DeleteStore)
	api.GET("/zones", view, h.ListZones)

	viewUsers := middleware.RequireCapability(auth.ViewUsers)
	manageUsers := middleware.RequireCapability(auth.ManageUsers)
	api.GET("/users", viewUsers, h.ListUsers)
	api.POST("/users", manageUsers, h.CreateUser)
	api.PUT("/users/:id", manageUsers, h.UpdateUser)
	api.DELETE("/users/:id", manageUsers, confirmed, h.DeleteUser)
}

// confirmed requires ?confirm=true on destructive requests.
func confirmed(c *gin.Context) {
	if c.Query("confirm") != "true" {
		badRequest(c, "deletion must be confirmed with ?confirm=true")
		return
	}
	c.Next()
}

func (h *DirectoryHandler) ListStores(c *gin.Context) {
	list, err := h.stores.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stores": list})
}

func (h *DirectoryHandler) CreateStore(c *gin.Context) {
	var in stores.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid store body")
		return
	}
	s, err := h.stores.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"store": s})
}

func (h *DirectoryHandler) UpdateStore(c *gin.Context) {
	var in stores.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid store body")
		return
	}
	s, err := h.stores.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"store": s})
}

func (h *DirectoryHandler) DeleteStore(c *gin.Context) {
	if err := h.stores.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DirectoryHandler) ListZones(c *gin.Context) {
	z, err := h.stores.Zones(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"zones": z})
}

func (h *DirectoryHandler) ListUsers(c *gin.Context) {
	list, err := h.users.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list})
}

func (h *DirectoryHandler) CreateUser(c *gin.Context) {
	var in users.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid user body")
		return
	}
	p, err := h.users.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": p})
}

func (h *DirectoryHandler) UpdateUser(c *gin.Context) {
	var in users.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid user body")
		return
	}
	p, err := h.users.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": p})
}

func (h *DirectoryHandler) DeleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
