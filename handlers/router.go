package handlers

import (
	"net/http"

	"github.com/auditdesk/auditdesk/internal/audits"
	"github.com/auditdesk/auditdesk/internal/auth"
	"github.com/auditdesk/auditdesk/internal/notifications"
	"github.com/auditdesk/auditdesk/internal/stores"
	"github.com/auditdesk/auditdesk/internal/users"
	"github.com/auditdesk/auditdesk/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// Deps are the services the view routes are built on.
type Deps struct {
	Session       *auth.Store
	Stores        *stores.Service
	Users         *users.Service
	Audits        *audits.Service
	Notifications *notifications.Feed
	// LoginLimit guards POST /auth/login when set.
	LoginLimit gin.HandlerFunc
	// Checks feed /ready.
	Checks map[string]Check
	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

// NewRouter builds the gin engine with every route of the desk.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	RegisterHealth(r, d.Checks)
	RegisterSwagger(r)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	NewAuthHandler(d.Session).Register(r.Group("/"), d.LoginLimit)

	api := r.Group("/api", middleware.RequireSession(d.Session))
	NewAuditHandler(d.Audits, d.Stores).Register(api)
	NewDirectoryHandler(d.Stores, d.Users).Register(api)
	NewNotificationHandler(d.Notifications).Register(api)
	return r
}
