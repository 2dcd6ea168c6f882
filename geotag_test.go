package geotag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/geotag/internal/fixture"
	"github.com/menta2k/geotag/pkg/geolocation"
	"github.com/menta2k/geotag/pkg/memory"
	"github.com/menta2k/geotag/pkg/source"
	"github.com/menta2k/geotag/pkg/types"
)

func writePhotos(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string][]byte{
		"photo_with_gps.jpg": fixture.JPEG(fixture.GPSTIFF(37.5665, 126.9780)),
		"photo_no_gps.heic":  fixture.HEIF(nil),
		"trip/jeju.heic":     fixture.HEIF(fixture.GPSTIFF(33.4996, 126.5312)),
	}
	for name, data := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
	return dir
}

func TestScenarios(t *testing.T) {
	dir := writePhotos(t)
	tempDir := t.TempDir()
	tagger := NewWithConfig(source.NewDirProvider(dir), Config{TempDir: tempDir})
	ctx := context.Background()

	got, ok := tagger.Extract(ctx, "photo_with_gps.jpg")
	require.True(t, ok)
	assert.InDelta(t, 37.5665, got.Latitude, 1e-6)
	assert.InDelta(t, 126.9780, got.Longitude, 1e-6)

	res := tagger.Diagnose(ctx, "photo_no_gps.heic")
	assert.False(t, res.Found)
	assert.True(t, res.UsedFallback)

	res = tagger.Diagnose(ctx, "does_not_exist")
	assert.False(t, res.Found)
	assert.False(t, res.UsedFallback)
	assert.Equal(t, types.OutcomeResourceUnavailable, res.Outcome)

	got, ok = tagger.Extract(ctx, "trip/jeju.heic")
	require.True(t, ok)
	assert.InDelta(t, 33.4996, got.Latitude, 1e-6)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExtractFile(t *testing.T) {
	dir := writePhotos(t)

	got, ok := ExtractFile(context.Background(), filepath.Join(dir, "trip", "jeju.heic"))
	require.True(t, ok)
	assert.InDelta(t, 126.5312, got.Longitude, 1e-6)

	_, ok = ExtractFile(context.Background(), filepath.Join(dir, "nope.jpg"))
	assert.False(t, ok)
}

func TestMetricsAndMemoryWiring(t *testing.T) {
	dir := writePhotos(t)
	metrics := geolocation.NewMetrics(prometheus.NewRegistry())
	tagger := NewWithConfig(source.NewDirProvider(dir), Config{TempDir: t.TempDir(), Metrics: metrics})

	svc := memory.NewService(tagger.Extractor(), memory.NewInMemoryRepository())
	m, err := svc.CreateFromPhoto(context.Background(), "Jeju weekend", "trip/jeju.heic")
	require.NoError(t, err)
	assert.True(t, m.HasLocation())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Fallbacks))
}

func TestInspectFile(t *testing.T) {
	dir := writePhotos(t)
	info, err := New(source.NewDirProvider(dir)).InspectFile(filepath.Join(dir, "photo_with_gps.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", info.Format)
	assert.Equal(t, 16, info.Width)
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
