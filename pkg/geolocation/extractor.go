// Package geolocation determines where a photo was taken from its embedded metadata.
//
// Extraction first parses the photo's byte stream directly. When that yields
// nothing, the photo is copied once to a temporary file and parsed from disk,
// which lets container formats that need random access (HEIF/HEIC) or a
// whole-file view (WebP, PNG) be read. The temporary file is removed before
// Extract returns, on every path.
//
// Extract never fails: a photo without a usable location, a missing resource
// and an internal parse or copy error all produce the same empty result.
// Diagnose exposes the internal outcome for logs and tooling.
package geolocation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/menta2k/geotag/pkg/exifgps"
	"github.com/menta2k/geotag/pkg/source"
	"github.com/menta2k/geotag/pkg/types"
)

// TempPattern is the os.CreateTemp pattern used for transient containers
const TempPattern = "geotag-*.img"

// MetadataReader parses GPS coordinates from a stream or a file on disk
type MetadataReader interface {
	ReadStream(r io.Reader) (types.Coordinates, error)
	ReadFile(path string) (types.Coordinates, error)
}

// Result describes how an extraction ended
type Result struct {
	Coordinates  types.Coordinates `json:"coordinates"`
	Found        bool              `json:"found"`
	Outcome      types.Outcome     `json:"-"`
	UsedFallback bool              `json:"used_fallback"`
}

// Extractor reads photo locations. It is safe for concurrent use.
type Extractor struct {
	provider source.Provider
	reader   MetadataReader
	tempDir  string
	logger   *slog.Logger
	metrics  *Metrics
}

// Option configures an Extractor
type Option func(*Extractor)

// WithTempDir sets the directory for transient containers. Empty means os.TempDir.
func WithTempDir(dir string) Option {
	return func(e *Extractor) { e.tempDir = dir }
}

// WithLogger sets the logger used for diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records extraction metrics
func WithMetrics(m *Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// WithReader replaces the metadata reader
func WithReader(r MetadataReader) Option {
	return func(e *Extractor) {
		if r != nil {
			e.reader = r
		}
	}
}

// New creates an Extractor reading resources from provider
func New(provider source.Provider, opts ...Option) *Extractor {
	e := &Extractor{
		provider: provider,
		reader:   exifgps.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the coordinates embedded in the photo identified by id.
// The boolean is false when no location could be determined for any reason.
func (e *Extractor) Extract(ctx context.Context, id string) (types.Coordinates, bool) {
	res := e.Diagnose(ctx, id)
	return res.Coordinates, res.Found
}

// Diagnose runs the same extraction as Extract and reports how it ended
func (e *Extractor) Diagnose(ctx context.Context, id string) (res Result) {
	start := time.Now()
	defer func() {
		e.metrics.observe(res, time.Since(start))
		e.logger.Debug("location extraction finished",
			"id", id,
			"outcome", res.Outcome.String(),
			"fallback", res.UsedFallback,
			"duration_ms", time.Since(start).Milliseconds())
	}()

	stream, err := e.open(ctx, id)
	if err != nil {
		e.logger.Debug("resource unavailable", "id", id, "error", err)
		return Result{Outcome: types.OutcomeResourceUnavailable}
	}

	coords, err := e.readStream(stream)
	if err == nil {
		return Result{Coordinates: coords, Found: true, Outcome: types.OutcomeFound}
	}
	e.logger.Debug("direct metadata read gave no location", "id", id, "error", err)

	res = e.convertAndRead(ctx, id)
	res.UsedFallback = true
	return res
}

// open asks the provider for a stream of id, treating a panic as unavailable
func (e *Extractor) open(ctx context.Context, id string) (stream io.ReadCloser, err error) {
	defer func() {
		if r := recover(); r != nil {
			stream, err = nil, fmt.Errorf("provider panic: %v", r)
		}
	}()
	stream, err = e.provider.Open(ctx, id)
	if err == nil && stream == nil {
		err = fmt.Errorf("provider returned no stream for %s", id)
	}
	return stream, err
}

// readStream runs the reader over the original stream and always closes it
func (e *Extractor) readStream(stream io.ReadCloser) (coords types.Coordinates, err error) {
	defer stream.Close()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stream parse panic: %v: %w", r, exifgps.ErrCorrupt)
		}
	}()
	return e.reader.ReadStream(stream)
}

// convertAndRead copies the resource into a fresh temporary file and parses it
// from disk. The file is removed before returning.
func (e *Extractor) convertAndRead(ctx context.Context, id string) Result {
	failed := Result{Outcome: types.OutcomeConversionFailure}
	if err := ctx.Err(); err != nil {
		e.logger.Debug("fallback skipped", "id", id, "error", err)
		return failed
	}

	tmp, err := os.CreateTemp(e.tempDir, TempPattern)
	if err != nil {
		e.logger.Warn("failed to create temporary container", "id", id, "error", err)
		return failed
	}
	container := types.TransientContainer{Path: tmp.Name()}
	defer func() {
		tmp.Close()
		if err := os.Remove(container.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			e.logger.Warn("failed to remove temporary container", "path", container.Path, "error", err)
		}
	}()

	container.Size, err = e.materialize(ctx, id, tmp)
	e.metrics.fallback(container.Size)
	if err != nil {
		e.logger.Debug("failed to materialize resource", "id", id, "path", container.Path, "error", err)
		return failed
	}

	coords, err := e.readFile(container.Path)
	if err != nil {
		e.logger.Debug("fallback metadata read gave no location",
			"id", id, "path", container.Path, "size", container.Size, "error", err)
		return Result{Outcome: exifgps.Classify(err)}
	}
	return Result{Coordinates: coords, Found: true, Outcome: types.OutcomeFound}
}

// materialize copies a freshly opened stream of id into dst and closes both
func (e *Extractor) materialize(ctx context.Context, id string, dst *os.File) (int64, error) {
	src, err := e.open(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("reopen %s: %w", id, err)
	}
	n, err := io.Copy(dst, &contextReader{ctx: ctx, r: src})
	if cerr := src.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close source: %w", cerr)
	}
	if cerr := dst.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close temporary container: %w", cerr)
	}
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", id, err)
	}
	return n, nil
}

func (e *Extractor) readFile(path string) (coords types.Coordinates, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("file parse panic: %v: %w", r, exifgps.ErrCorrupt)
		}
	}()
	return e.reader.ReadFile(path)
}

// contextReader stops reading once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
