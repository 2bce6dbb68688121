package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fake repo for testing
type fakeRepo struct {
	store map[string]*Session
}

func (f *fakeRepo) Create(ctx context.Context, s *Session) error {
	if f.store == nil {
		f.store = map[string]*Session{}
	}
	f.store[s.RefreshToken] = s
	return nil
}

func (f *fakeRepo) GetByRefresh(ctx context.Context, refresh string) (*Session, error) {
	s, ok := f.store[refresh]
	if !ok {
		return nil, nil
	}
	return s, nil
}

func (f *fakeRepo) DeleteByRefresh(ctx context.Context, refresh string) error {
	delete(f.store, refresh)
	return nil
}

func TestCreateAndValidateSession(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, time.Hour)
	ctx := context.Background()

	r, err := svc.CreateSession(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, r, 64)

	sess, err := svc.ValidateRefresh(ctx, r)
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, "user-1", sess.UserID)

	require.NoError(t, svc.DeleteRefresh(ctx, r))
	sess2, err := svc.ValidateRefresh(ctx, r)
	require.NoError(t, err)
	require.Nil(t, sess2)
}

func TestValidateRefresh_ExpiredIsRemoved(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, time.Hour)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &Session{RefreshToken: "old", UserID: "u", ExpiresAt: time.Now().UTC().Add(-time.Minute)}))

	sess, err := svc.ValidateRefresh(ctx, "old")
	require.NoError(t, err)
	require.Nil(t, sess)
	require.NotContains(t, repo.store, "old")
}

func TestRotate(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, 0)
	ctx := context.Background()

	first, err := svc.CreateSession(ctx, "user-2")
	require.NoError(t, err)

	next, sess, err := svc.Rotate(ctx, first)
	require.NoError(t, err)
	require.NotEmpty(t, next)
	require.NotEqual(t, first, next)
	require.Equal(t, "user-2", sess.UserID)

	// the old token is gone
	again, sess, err := svc.Rotate(ctx, first)
	require.NoError(t, err)
	require.Empty(t, again)
	require.Nil(t, sess)
}

func TestMemoryRepository(t *testing.T) {
	svc := NewService(NewMemoryRepository(), time.Minute)
	ctx := context.Background()

	rt, err := svc.CreateSession(ctx, "user-7")
	require.NoError(t, err)
	sess, err := svc.ValidateRefresh(ctx, rt)
	require.NoError(t, err)
	require.Equal(t, "user-7", sess.UserID)

	sess.UserID = "mutated"
	again, err := svc.ValidateRefresh(ctx, rt)
	require.NoError(t, err)
	require.Equal(t, "user-7", again.UserID, "stored sessions are copies")

	require.NoError(t, svc.DeleteRefresh(ctx, rt))
	gone, err := svc.ValidateRefresh(ctx, rt)
	require.NoError(t, err)
	require.Nil(t, gone)
}
