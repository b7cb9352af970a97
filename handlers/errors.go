package handlers

import (
	"errors"
	"net/http"

	"github.com/auditdesk/auditdesk/internal/apperrors"
	"github.com/auditdesk/auditdesk/pkg/logger"
	"github.com/gin-gonic/gin"
)

var statusByKind = map[apperrors.Kind]int{
	apperrors.KindAuthentication: http.StatusUnauthorized,
	apperrors.KindDataAccess:     http.StatusBadGateway,
	apperrors.KindConfiguration:  http.StatusInternalServerError,
	apperrors.KindForbidden:      http.StatusForbidden,
	apperrors.KindNotFound:       http.StatusNotFound,
	apperrors.KindInvalidInput:   http.StatusBadRequest,
}

// respondError writes err as JSON with the status of its kind. Errors
// without a kind are logged and reported as 500 without details.
func respondError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if kind == apperrors.KindDataAccess {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	msg := err.Error()
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		msg = appErr.Message
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "kind": kind})
}

func badRequest(c *gin.Context, msg string) {
	respondError(c, apperrors.New(apperrors.KindInvalidInput, msg))
}
