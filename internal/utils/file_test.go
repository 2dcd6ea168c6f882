package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsImageFile(t *testing.T) {
	tests := []struct {
		name       string
		extensions []string
		want       bool
	}{
		{"a.JPG", nil, true},
		{"b.heic", nil, true},
		{"c.HEIF", nil, true},
		{"d.txt", nil, false},
		{"noext", nil, false},
		{"e.png", []string{".PNG"}, true},
		{"f.jpg", []string{"png"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsImageFile(tc.name, tc.extensions))
		})
	}
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jpg", "a.heic", "notes.txt", "trip/c.webp", "trip/deep/d.PNG"} {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	files, err := ListImageFiles(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.heic", "b.jpg", "trip/c.webp", "trip/deep/d.PNG"}, files)

	_, err = ListImageFiles(filepath.Join(dir, "missing"), nil)
	assert.Error(t, err)
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 << 20, "5.0 MB"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FormatFileSize(tc.size))
	}
}
