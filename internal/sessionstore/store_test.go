package sessionstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropinbox/internal/domain"
	"dropinbox/internal/redisstore"
)

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*redisstore.Store)(nil)
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
	}
}

func TestStore_SaveLoadClear(t *testing.T) {
	for name, s := range stores(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Nil(t, got)

			want := domain.Session{SessionID: "xyz", Address: "box@dropmail.me", ExpiresAt: 1700000000000}
			require.NoError(t, s.Save(ctx, want))

			got, err = s.Load(ctx)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, want, *got)

			require.NoError(t, s.Clear(ctx))
			got, err = s.Load(ctx)
			require.NoError(t, err)
			assert.Nil(t, got)

			require.NoError(t, s.Clear(ctx), "clearing twice is fine")
		})
	}
}

func TestMemoryStore_IncompleteIsAbsent(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Save(context.Background(), domain.Session{SessionID: "abc"}))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStore_Layout(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), domain.Session{SessionID: "abc", Address: "a@b", ExpiresAt: 1700000000000}))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.JSONEq(t, `{"sessionID":"abc","email":"a@b","expiration":"1700000000000"}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_PartialRecordIsAbsent(t *testing.T) {
	cases := map[string]string{
		"no expiration":  `{"sessionID":"abc","email":"a@b"}`,
		"no session id":  `{"email":"a@b","expiration":"1700000000000"}`,
		"no email":       `{"sessionID":"abc","expiration":"1700000000000"}`,
		"bad expiration": `{"sessionID":"abc","email":"a@b","expiration":"later"}`,
		"empty object":   `{}`,
	}

	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(s.Path(), []byte(body), 0o600))

			got, err := s.Load(context.Background())
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o600))

	got, err := s.Load(context.Background())
	assert.Error(t, err)
	assert.Nil(t, got)
}
