package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the desk.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>auditdesk - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "auditdesk", "version": "v0.1.0" },
  "paths": {
    "/auth/login": {
      "post": {
        "summary": "Sign in with email and password",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "settled session" }, "401": { "description": "provider rejected the credentials" }, "429": { "description": "too many attempts" } }
      }
    },
    "/auth/logout": { "post": { "summary": "Sign out", "responses": { "200": { "description": "signed out" } } } },
    "/auth/session": { "get": { "summary": "Current session, profile and capabilities", "responses": { "200": { "description": "session" } } } },
    "/auth/profile": { "patch": { "summary": "Rename the signed-in user", "responses": { "200": { "description": "updated profile" } } } },
    "/api/dashboard": { "get": { "summary": "KPI tiles and recent audits", "responses": { "200": { "description": "dashboard" } } } },
    "/api/checklist": { "get": { "summary": "Checklist categories with items", "responses": { "200": { "description": "checklist" } } } },
    "/api/audits": {
      "get": { "summary": "Audit history", "responses": { "200": { "description": "audits" } } },
      "post": { "summary": "Submit a completed audit (multipart: store_id, notes, answers, photos)", "responses": { "201": { "description": "recorded audit" } } }
    },
    "/api/audits/{id}": { "get": { "summary": "One audit with answers and photos", "responses": { "200": { "description": "audit" }, "404": { "description": "not found" } } } },
    "/api/reports": { "get": { "summary": "Per-store report", "responses": { "200": { "description": "rows" } } } },
    "/api/reports/export": { "get": { "summary": "Per-store report as XLSX", "responses": { "200": { "description": "workbook" } } } },
    "/api/stores": {
      "get": { "summary": "Stores with zone", "responses": { "200": { "description": "stores" } } },
      "post": { "summary": "Create store", "responses": { "201": { "description": "store" } } }
    },
    "/api/stores/{id}": {
      "put": { "summary": "Update store", "responses": { "200": { "description": "store" } } },
      "delete": { "summary": "Delete store (requires confirm=true)", "responses": { "204": { "description": "deleted" } } }
    },
    "/api/zones": { "get": { "summary": "Zones", "responses": { "200": { "description": "zones" } } } },
    "/api/users": {
      "get": { "summary": "User profiles", "responses": { "200": { "description": "users" } } },
      "post": { "summary": "Create profile", "responses": { "201": { "description": "user" } } }
    },
    "/api/users/{id}": {
      "put": { "summary": "Update profile", "responses": { "200": { "description": "user" } } },
      "delete": { "summary": "Delete profile (requires confirm=true)", "responses": { "204": { "description": "deleted" } } }
    },
    "/api/notifications": { "get": { "summary": "Notification feed", "responses": { "200": { "description": "feed" } } } },
    "/api/notifications/{id}/read": { "post": { "summary": "Mark one notification read", "responses": { "200": { "description": "feed" } } } },
    "/api/notifications/read-all": { "post": { "summary": "Mark all notifications read", "responses": { "200": { "description": "feed" } } } },
    "/api/notifications/reload": { "post": { "summary": "Reload the feed from the backend", "responses": { "200": { "description": "feed" } } } },
    "/api/notifications/stream": { "get": { "summary": "Feed snapshots as server-sent events", "responses": { "200": { "description": "event stream" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
