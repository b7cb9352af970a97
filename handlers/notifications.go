package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/auditdesk/auditdesk/internal/notifications"
	"github.com/gin-gonic/gin"
)

const keepAliveInterval = 25 * time.Second

// NotificationHandler exposes the notification feed of the signed-in user.
type NotificationHandler struct {
	feed *notifications.Feed
}

func NewNotificationHandler(feed *notifications.Feed) *NotificationHandler {
	return &NotificationHandler{feed: feed}
}

// Register routes on a group that already requires a session.
func (h *NotificationHandler) Register(api *gin.RouterGroup) {
	n := api.Group("/notifications")
	n.GET("", h.List)
	n.POST("/:id/read", h.MarkRead)
	n.POST("/read-all", h.MarkAllRead)
	n.POST("/reload", h.Reload)
	n.GET("/stream", h.Stream)
}

func (h *NotificationHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.feed.Snapshot())
}

// MarkRead flips one notification to read. On a failed write the local
// flag stays flipped and the error is returned.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.feed.MarkAsRead(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.feed.Snapshot())
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.feed.MarkAllAsRead(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.feed.Snapshot())
}

func (h *NotificationHandler) Reload(c *gin.Context) {
	if err := h.feed.Reload(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.feed.Snapshot())
}

// Stream pushes a "feed" server-sent event with the full snapshot on every change.
func (h *NotificationHandler) Stream(c *gin.Context) {
	updates := h.feed.Watch(c.Request.Context())
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case snap, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("feed", snap)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
