package sessions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// fake repo for testing
type fakeRepo struct {
	store map[string]*Session
}

func (f *fakeRepo) Save(ctx context.Context, s *Session) error {
	if f.store == nil {
		f.store = map[string]*Session{}
	}
	cp := *s
	f.store[s.DeviceID] = &cp
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, deviceID string) (*Session, error) {
	s, ok := f.store[deviceID]
	if !ok {
		return nil, nil
	}
	return s, nil
}

func (f *fakeRepo) Delete(ctx context.Context, deviceID string) error {
	delete(f.store, deviceID)
	return nil
}

func TestStoreLoadClear(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, "desk-1")
	ctx := context.Background()

	got, err := svc.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, svc.Store(ctx, Session{DeviceID: "ignored", UserID: "u1", RefreshToken: "rt"}))
	got, err = svc.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "desk-1", got.DeviceID)
	require.Equal(t, "u1", got.UserID)
	require.False(t, got.SavedAt.IsZero())

	require.NoError(t, svc.Clear(ctx))
	require.NoError(t, svc.Clear(ctx))
	got, err = svc.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestLoadDropsSessionWithoutRefreshToken(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, "")
	ctx := context.Background()

	require.NoError(t, svc.Store(ctx, Session{UserID: "u1"}))
	got, err := svc.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Empty(t, repo.store)
}
