package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirProviderOpen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "album"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "album", "a.jpg"), []byte("hello"), 0o644))

	p := NewDirProvider(dir)
	assert.Equal(t, dir, p.Root())

	rc, err := p.Open(context.Background(), "album/a.jpg")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestDirProviderErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "album"), 0o755))
	p := NewDirProvider(dir)

	tests := []struct {
		name string
		id   string
	}{
		{"missing", "does_not_exist"},
		{"parent escape", "../etc/passwd"},
		{"absolute", "/etc/passwd"},
		{"directory", "album"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Open(context.Background(), tc.id)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestOpenCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDirProvider(t.TempDir()).Open(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewMapProvider().Open(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMapProvider(t *testing.T) {
	p := NewMapProvider()
	p.Put("photo", []byte("bytes"))

	for i := 0; i < 2; i++ {
		rc, err := p.Open(context.Background(), "photo")
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, "bytes", string(data))
	}
	assert.Equal(t, 2, p.Opens("photo"))

	_, err := p.Open(context.Background(), "other")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, p.Opens("other"))
}
