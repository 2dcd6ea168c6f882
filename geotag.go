// Package geotag finds where photos were taken so they can be pinned on a
// couple's shared Memories map.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"github.com/menta2k/geotag"
//		"github.com/menta2k/geotag/pkg/source"
//	)
//
//	func main() {
//		tagger := geotag.New(source.NewDirProvider("/photos"))
//
//		coords, ok := tagger.Extract(context.Background(), "2026/seoul.heic")
//		if !ok {
//			fmt.Println("no location")
//			return
//		}
//		fmt.Printf("taken at %.5f, %.5f\n", coords.Latitude, coords.Longitude)
//	}
//
// The package consists of these components:
//
// 1. Source (pkg/source): Resolves photo identifiers into byte streams
// 2. Exifgps (pkg/exifgps): Parses GPS coordinates from EXIF metadata
// 3. Geolocation (pkg/geolocation): Direct read with a temporary-file fallback
// 4. Memory (pkg/memory): Creates map-pinned Memory records from photos
//
// JPEG and TIFF photos are parsed straight from the stream. HEIF/HEIC, WebP
// and PNG photos are copied to a temporary file first, which is always removed
// before the call returns. A photo without a location is not an error.
package geotag

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/menta2k/geotag/pkg/exifgps"
	"github.com/menta2k/geotag/pkg/geolocation"
	"github.com/menta2k/geotag/pkg/photo"
	"github.com/menta2k/geotag/pkg/source"
	"github.com/menta2k/geotag/pkg/types"
)

// Version of the geotag library
const Version = "1.0.0"

// Config holds optional settings for a Geotag
type Config struct {
	TempDir          string
	MaxBufferedBytes int64
	Logger           *slog.Logger
	Metrics          *geolocation.Metrics
}

// Geotag provides a high-level interface for photo location extraction
type Geotag struct {
	extractor *geolocation.Extractor
	inspector *photo.Inspector
}

// New creates a new Geotag with default configuration
func New(provider source.Provider) *Geotag {
	return NewWithConfig(provider, Config{})
}

// NewWithConfig creates a new Geotag with custom configuration
func NewWithConfig(provider source.Provider, cfg Config) *Geotag {
	reader := exifgps.NewWithConfig(exifgps.Config{MaxBufferedBytes: cfg.MaxBufferedBytes})
	return &Geotag{
		extractor: geolocation.New(provider,
			geolocation.WithTempDir(cfg.TempDir),
			geolocation.WithLogger(cfg.Logger),
			geolocation.WithMetrics(cfg.Metrics),
			geolocation.WithReader(reader),
		),
		inspector: photo.New(),
	}
}

// Extract returns the coordinates of the photo identified by id, if it has any
func (g *Geotag) Extract(ctx context.Context, id string) (types.Coordinates, bool) {
	return g.extractor.Extract(ctx, id)
}

// Diagnose extracts coordinates and reports how the extraction ended
func (g *Geotag) Diagnose(ctx context.Context, id string) geolocation.Result {
	return g.extractor.Diagnose(ctx, id)
}

// Extractor returns the underlying extractor, e.g. to back a memory.Service
func (g *Geotag) Extractor() *geolocation.Extractor {
	return g.extractor
}

// InspectFile returns format and dimensions of the photo at path
func (g *Geotag) InspectFile(path string) (photo.Info, error) {
	return g.inspector.InspectFile(path)
}

// ExtractFile is a convenience function that reads the location of a photo on disk
func ExtractFile(ctx context.Context, path string) (types.Coordinates, bool) {
	return New(source.NewDirProvider(filepath.Dir(path))).Extract(ctx, filepath.Base(path))
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
