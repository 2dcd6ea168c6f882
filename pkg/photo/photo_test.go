package photo

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/geotag/internal/fixture"
)

func TestNew(t *testing.T) {
	inspector := New()
	if inspector == nil {
		t.Fatal("New() returned nil")
	}

	if len(inspector.config.SupportedFormats) != 6 {
		t.Errorf("Expected 6 supported formats, got %d", len(inspector.config.SupportedFormats))
	}
}

func TestNewWithConfig(t *testing.T) {
	cfg := Config{
		SupportedFormats: []string{"png"},
		MinImageSize:     200,
	}

	inspector := NewWithConfig(cfg)
	if inspector.config.MinImageSize != 200 {
		t.Errorf("Expected min size 200, got %d", inspector.config.MinImageSize)
	}
}

func TestInspect(t *testing.T) {
	webpData, err := fixture.WebP(nil)
	if err != nil {
		t.Fatalf("webp fixture: %v", err)
	}

	tests := []struct {
		name   string
		data   []byte
		format string
	}{
		{"jpeg", fixture.JPEG(nil), "jpeg"},
		{"jpeg with exif", fixture.JPEG(fixture.GPSTIFF(1, 2)), "jpeg"},
		{"png with exif", fixture.PNG(fixture.GPSTIFF(1, 2)), "png"},
		{"webp", webpData, "webp"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info, err := New().Inspect(bytes.NewReader(tc.data))
			if err != nil {
				t.Fatalf("Inspect() error: %v", err)
			}
			if info.Format != tc.format {
				t.Errorf("Expected format %s, got %s", tc.format, info.Format)
			}
			if info.Width != 16 || info.Height != 12 {
				t.Errorf("Expected 16x12, got %dx%d", info.Width, info.Height)
			}
			if info.AspectRatio != float64(16)/float64(12) {
				t.Errorf("Unexpected aspect ratio %f", info.AspectRatio)
			}
		})
	}
}

func TestInspectRejects(t *testing.T) {
	if _, err := New().Inspect(bytes.NewReader(fixture.HEIF(nil))); err == nil {
		t.Error("HEIF should not be decodable")
	}

	pngOnly := NewWithConfig(Config{SupportedFormats: []string{"png"}, MinImageSize: 1})
	if _, err := pngOnly.Inspect(bytes.NewReader(fixture.JPEG(nil))); err == nil {
		t.Error("JPEG should be rejected when only PNG is supported")
	}

	large := NewWithConfig(Config{SupportedFormats: []string{"jpeg"}, MinImageSize: 100})
	if _, err := large.Inspect(bytes.NewReader(fixture.JPEG(nil))); err == nil {
		t.Error("Small image should fail validation")
	}
}

func TestInspectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	if err := os.WriteFile(path, fixture.PNG(nil), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := New().InspectFile(path)
	if err != nil {
		t.Fatalf("InspectFile() error: %v", err)
	}
	if info.Format != "png" {
		t.Errorf("Expected png, got %s", info.Format)
	}

	if _, err := New().InspectFile(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("Missing file should fail")
	}
}

func TestIsFormatSupported(t *testing.T) {
	inspector := New()

	for _, format := range []string{"jpeg", "PNG", "WebP", "tiff"} {
		if !inspector.isFormatSupported(format) {
			t.Errorf("Format %s should be supported", format)
		}
	}

	for _, format := range []string{"heif", "avif", ""} {
		if inspector.isFormatSupported(format) {
			t.Errorf("Format %s should not be supported", format)
		}
	}
}

func BenchmarkInspect(b *testing.B) {
	inspector := New()
	data := fixture.JPEG(nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		inspector.Inspect(bytes.NewReader(data))
	}
}
