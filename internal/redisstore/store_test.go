package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropinbox/internal/domain"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := New("redis://"+mr.Addr()+"/0", "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestNew_Unreachable(t *testing.T) {
	_, err := New("redis://127.0.0.1:1/0", "")
	assert.Error(t, err)
}

func TestSession_RoundTrip(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	want := domain.Session{SessionID: "xyz", Address: "box@dropmail.me", ExpiresAt: 1700000000000}
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	v, err := mr.Get("test:expiration")
	require.NoError(t, err)
	assert.Equal(t, "1700000000000", v)
}

func TestSession_LoadEmpty(t *testing.T) {
	s, _ := newTestStore(t)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSession_PartialIsAbsent(t *testing.T) {
	s, mr := newTestStore(t)

	require.NoError(t, mr.Set("test:sessionID", "abc"))
	require.NoError(t, mr.Set("test:expiration", "1700000000000"))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSession_BadExpirationIsAbsent(t *testing.T) {
	s, mr := newTestStore(t)

	require.NoError(t, mr.Set("test:sessionID", "abc"))
	require.NoError(t, mr.Set("test:email", "a@b"))
	require.NoError(t, mr.Set("test:expiration", "soon"))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSession_Clear(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, domain.Session{SessionID: "a", Address: "b@c", ExpiresAt: 1}))
	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))

	assert.False(t, mr.Exists("test:sessionID"))
	assert.False(t, mr.Exists("test:email"))
	assert.False(t, mr.Exists("test:expiration"))
}

func TestRateLimit(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := s.RateLimit(ctx, "10.0.0.1", "create", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "hit %d", i+1)
	}

	ok, err := s.RateLimit(ctx, "10.0.0.1", "create", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.RateLimit(ctx, "10.0.0.2", "create", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Minute + time.Second)

	ok, err = s.RateLimit(ctx, "10.0.0.1", "create", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
