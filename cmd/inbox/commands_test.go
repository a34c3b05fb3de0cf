package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropinbox/internal/notify"
)

func TestWatchFocus(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer f.Close()
	fd := int(f.Fd())

	assert.IsType(t, notify.Unfocused{}, watchFocus(false, fd), "notifies by default")
	assert.IsType(t, notify.TerminalFocus{}, watchFocus(true, fd))
	assert.False(t, watchFocus(true, fd).Focused(), "redirected output is never focused")
}
