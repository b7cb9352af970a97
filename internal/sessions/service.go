package sessions

import (
	"context"
	"time"
)

// Service persists the single active session of this installation.
type Service struct {
	repo     Repository
	deviceID string
}

func NewService(r Repository, deviceID string) *Service {
	if deviceID == "" {
		deviceID = "default"
	}
	return &Service{repo: r, deviceID: deviceID}
}

// Store records s as the active session, replacing any previous one.
func (s *Service) Store(ctx context.Context, sess Session) error {
	sess.DeviceID = s.deviceID
	sess.SavedAt = time.Now().UTC()
	return s.repo.Save(ctx, &sess)
}

// Load returns the stored session, or nil when there is none or it has no
// refresh token left to resume from.
func (s *Service) Load(ctx context.Context) (*Session, error) {
	sess, err := s.repo.Get(ctx, s.deviceID)
	if err != nil || sess == nil {
		return nil, err
	}
	if sess.RefreshToken == "" {
		_ = s.repo.Delete(ctx, s.deviceID)
		return nil, nil
	}
	return sess, nil
}

// Clear removes the stored session. Clearing an empty slot is not an error.
func (s *Service) Clear(ctx context.Context) error {
	return s.repo.Delete(ctx, s.deviceID)
}
