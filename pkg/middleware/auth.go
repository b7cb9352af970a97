package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/auditdesk/auditdesk/internal/auth"
	"github.com/gin-gonic/gin"
)

const snapshotKey = "session"

// SessionSource is the settled view of the session store; *auth.Store satisfies it.
type SessionSource interface {
	Wait(ctx context.Context) (auth.Snapshot, error)
}

// settleTimeout bounds how long a request waits for an in-flight profile fetch.
const settleTimeout = 5 * time.Second

// RequireSession rejects requests while nobody is signed in. The settled
// snapshot is stored on the context for handlers and RequireCapability.
func RequireSession(src SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), settleTimeout)
		defer cancel()
		snap, err := src.Wait(ctx)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session is still loading"})
			return
		}
		if snap.Session == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}
		c.Set(snapshotKey, snap)
		c.Next()
	}
}

// RequireCapability rejects requests whose profile may not perform action.
// It must run after RequireSession.
func RequireCapability(action auth.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, _ := SnapshotFrom(c)
		if !auth.Authorize(snap.Profile, action) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not allowed", "action": action})
			return
		}
		c.Next()
	}
}

// SnapshotFrom returns the snapshot stored by RequireSession.
func SnapshotFrom(c *gin.Context) (auth.Snapshot, bool) {
	v, ok := c.Get(snapshotKey)
	if !ok {
		return auth.Snapshot{}, false
	}
	snap, ok := v.(auth.Snapshot)
	return snap, ok
}

// limitKey picks the rate limit key: the signed-in user when known, otherwise the client IP.
func limitKey(c *gin.Context) string {
	if snap, ok := SnapshotFrom(c); ok && snap.UserID() != "" {
		return "user:" + snap.UserID()
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
