package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/folio-go/internal/errs"
	"github.com/comigor/folio-go/internal/model"
)

type fakeFetcher struct {
	profile *model.Profile
	err     error
	calls   int
}

func (f *fakeFetcher) CurrentUser(ctx context.Context) (*model.Profile, error) {
	f.calls++
	return f.profile, f.err
}

func TestStore_TokenSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")

	s := Open(path)
	_, ok := s.Token()
	require.False(t, ok)
	require.NoError(t, s.SetToken("tok-1"))
	s.SetUser(&model.Profile{ID: 1, Name: "Ada"})
	require.NoError(t, s.Close())

	reopened := Open(path)
	t.Cleanup(func() { reopened.Close() })
	tok, ok := reopened.Token()
	require.True(t, ok)
	require.Equal(t, "tok-1", tok)
	// the profile is never persisted
	require.Nil(t, reopened.User())
}

func TestStore_ClearPurgesToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	s := Open(path)
	require.NoError(t, s.SetToken("tok"))
	require.NoError(t, s.Clear())
	require.NoError(t, s.Close())

	reopened := Open(path)
	t.Cleanup(func() { reopened.Close() })
	_, ok := reopened.Token()
	require.False(t, ok)
}

func TestStore_InMemoryFallback(t *testing.T) {
	s := Open("")
	require.NoError(t, s.SetToken("mem"))
	tok, ok := s.Token()
	require.True(t, ok)
	require.Equal(t, "mem", tok)
	require.Equal(t, model.Session{Token: "mem"}, s.Snapshot())
}

func TestRestore_NoToken(t *testing.T) {
	s := Open("")
	f := &fakeFetcher{}
	_, err := s.Restore(context.Background(), f)
	require.ErrorIs(t, err, errs.ErrNoSession)
	require.Zero(t, f.calls)
}

func TestRestore_FetchesProfileOnce(t *testing.T) {
	s := Open("")
	require.NoError(t, s.SetToken("tok"))
	f := &fakeFetcher{profile: &model.Profile{ID: 3, Email: "a@b.c"}}

	u, err := s.Restore(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, 3, u.ID)

	_, err = s.Restore(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, 1, f.calls)
}

func TestRestore_FailurePurgesToken(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "session.db"))
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.SetToken("expired"))
	f := &fakeFetcher{err: errors.New("401")}

	_, err := s.Restore(context.Background(), f)
	var ae *errs.AuthError
	require.ErrorAs(t, err, &ae)
	_, ok := s.Token()
	require.False(t, ok)
}

func TestSetToken_FailedWriteKeepsPreviousToken(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, s.SetToken("old"))
	require.NoError(t, s.Close())

	require.Error(t, s.SetToken("new"))
	tok, ok := s.Token()
	require.True(t, ok)
	require.Equal(t, "old", tok)
}

func TestSetToken_FailedWriteLeavesNoSession(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "session.db"))
	_, ok := s.Token()
	require.False(t, ok)
	require.NoError(t, s.Close())

	require.Error(t, s.SetToken("tok"))
	_, ok = s.Token()
	require.False(t, ok)
}
