package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/auditdesk/auditdesk/internal/auth"
	"github.com/auditdesk/auditdesk/pkg/logger"
	"github.com/auditdesk/auditdesk/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// LoginRequest is the password sign-in body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthHandler exposes the session store.
type AuthHandler struct {
	store *auth.Store
}

func NewAuthHandler(store *auth.Store) *AuthHandler {
	return &AuthHandler{store: store}
}

// Register routes under /auth. loginLimit, when non-nil, guards POST /auth/login.
func (h *AuthHandler) Register(rg *gin.RouterGroup, loginLimit gin.HandlerFunc) {
	a := rg.Group("/auth")
	login := []gin.HandlerFunc{h.Login}
	if loginLimit != nil {
		login = append([]gin.HandlerFunc{loginLimit}, login...)
	}
	a.POST("/login", login...)
	a.POST("/logout", h.Logout)
	a.GET("/session", h.Session)
	a.PATCH("/profile", middleware.RequireSession(h.store), h.UpdateProfile)
}

// sessionView is the session state as the UI consumes it.
type sessionView struct {
	auth.Snapshot
	Capabilities []auth.Action `json:"capabilities"`
}

var allActions = []auth.Action{
	auth.ViewDashboard, auth.CreateAudit, auth.ViewAllAudits,
	auth.ViewReports, auth.ExportReports, auth.ViewStores,
	auth.ManageStores, auth.ViewUsers, auth.ManageUsers,
}

func view(s auth.Snapshot) sessionView {
	v := sessionView{Snapshot: s, Capabilities: []auth.Action{}}
	for _, a := range allActions {
		if auth.Authorize(s.Profile, a) {
			v.Capabilities = append(v.Capabilities, a)
		}
	}
	return v
}

func (h *AuthHandler) settled(ctx context.Context) auth.Snapshot {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	snap, err := h.store.Wait(ctx)
	if err != nil {
		logger.Warnf("session did not settle: %v", err)
	}
	return snap
}

// Login signs in with email and password and returns the settled session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	if err := h.store.SignIn(c.Request.Context(), req.Email, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view(h.settled(c.Request.Context())))
}

// Logout ends the session. The local session is gone even if the provider
// could not be told.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.store.SignOut(c.Request.Context()); err != nil {
		logger.Warnf("sign out: %v", err)
		c.JSON(http.StatusOK, gin.H{"session": view(h.store.Snapshot()), "warning": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": view(h.store.Snapshot())})
}

func (h *AuthHandler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, view(h.settled(c.Request.Context())))
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var patch auth.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid profile body")
		return
	}
	p, err := h.store.UpdateProfile(c.Request.Context(), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}
