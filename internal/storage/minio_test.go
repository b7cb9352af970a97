package storage

import (
	"context"
	"testing"

	"github.com/auditdesk/auditdesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMinIOStorageRequiresEndpoint(t *testing.T) {
	_, err := NewMinIOStorage(context.Background(), config.MinIOConfig{Bucket: "audit-photos"})
	require.Error(t, err)
}

func TestPublicURL(t *testing.T) {
	s := &MinIOStorage{bucket: "audit-photos", publicURL: "https://cdn.example.com"}
	assert.Equal(t, "https://cdn.example.com/audit-photos/a1/1700000000-front.jpg", s.PublicURL("a1/1700000000-front.jpg"))
	assert.Equal(t, "https://cdn.example.com/audit-photos/a1/1-shelf%20two.jpg", s.PublicURL("a1/1-shelf two.jpg"))
}
