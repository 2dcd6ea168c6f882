// Package exifgps reads GPS coordinates from the EXIF metadata of photos.
//
// A Reader parses JPEG and TIFF metadata directly from a stream. Containers
// that need random access (HEIF/HEIC) or a whole-file view (WebP, PNG) can
// only be read from a file path with ReadFile.
package exifgps

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chai2010/webp"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/menta2k/geotag/pkg/bmff"
	"github.com/menta2k/geotag/pkg/container"
	"github.com/menta2k/geotag/pkg/types"
)

var (
	// ErrNoGPS means the metadata was readable but holds no GPS location
	ErrNoGPS = errors.New("exifgps: no gps location")
	// ErrCorrupt means the metadata block could not be parsed
	ErrCorrupt = errors.New("exifgps: corrupt metadata")
	// ErrUnsupportedContainer means the container cannot be read from this kind of source
	ErrUnsupportedContainer = errors.New("exifgps: unsupported container")
)

// Config holds limits for metadata parsing
type Config struct {
	// MaxBufferedBytes caps how much of a WebP or PNG file is loaded to find its EXIF chunk
	MaxBufferedBytes int64
}

// DefaultConfig returns the default reader limits
func DefaultConfig() Config {
	return Config{MaxBufferedBytes: 64 << 20}
}

// Reader extracts GPS coordinates from EXIF metadata
type Reader struct {
	config Config
}

// New creates a Reader with default configuration
func New() *Reader {
	return &Reader{config: DefaultConfig()}
}

// NewWithConfig creates a Reader with custom configuration
func NewWithConfig(config Config) *Reader {
	if config.MaxBufferedBytes <= 0 {
		config.MaxBufferedBytes = DefaultConfig().MaxBufferedBytes
	}
	return &Reader{config: config}
}

// ReadStream reads coordinates from a JPEG or TIFF stream
func (r *Reader) ReadStream(src io.Reader) (types.Coordinates, error) {
	br := bufio.NewReader(src)
	header, _ := br.Peek(container.SniffLen)
	if len(header) == 0 {
		return types.Coordinates{}, fmt.Errorf("empty stream: %w", ErrCorrupt)
	}
	switch format := container.Detect(header); format {
	case types.FormatJPEG, types.FormatTIFF:
		return decode(br)
	default:
		return types.Coordinates{}, fmt.Errorf("%s stream: %w", format, ErrUnsupportedContainer)
	}
}

// ReadFile reads coordinates from the photo at path, whatever its container
func (r *Reader) ReadFile(path string) (types.Coordinates, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Coordinates{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return types.Coordinates{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	size := info.Size()

	header := make([]byte, container.SniffLen)
	n, err := f.ReadAt(header, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return types.Coordinates{}, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	if n == 0 {
		return types.Coordinates{}, fmt.Errorf("empty file %s: %w", path, ErrCorrupt)
	}

	switch format := container.Detect(header[:n]); format {
	case types.FormatJPEG, types.FormatTIFF:
		return decode(io.NewSectionReader(f, 0, size))
	case types.FormatHEIF:
		payload, err := bmff.ExifPayload(f, size)
		if errors.Is(err, bmff.ErrNoExif) {
			return types.Coordinates{}, ErrNoGPS
		}
		if err != nil {
			return types.Coordinates{}, fmt.Errorf("heif: %v: %w", err, ErrCorrupt)
		}
		return decode(bytes.NewReader(payload))
	case types.FormatWebP:
		data, err := r.readAll(f, size)
		if err != nil {
			return types.Coordinates{}, err
		}
		meta, err := webp.GetMetadata(data, "EXIF")
		if err != nil || len(meta) == 0 {
			return types.Coordinates{}, ErrNoGPS
		}
		return decode(bytes.NewReader(bytes.TrimPrefix(meta, []byte("Exif\x00\x00"))))
	case types.FormatPNG:
		payload, err := pngExif(io.NewSectionReader(f, 0, size))
		if err != nil {
			return types.Coordinates{}, err
		}
		return decode(bytes.NewReader(payload))
	default:
		return types.Coordinates{}, fmt.Errorf("%s file: %w", format, ErrUnsupportedContainer)
	}
}

func (r *Reader) readAll(f *os.File, size int64) ([]byte, error) {
	if size > r.config.MaxBufferedBytes {
		return nil, fmt.Errorf("file of %d bytes exceeds %d byte limit: %w", size, r.config.MaxBufferedBytes, ErrUnsupportedContainer)
	}
	data := make([]byte, size)
	if _, err := f.ReadAt(data, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name(), err)
	}
	return data, nil
}

// decode parses an EXIF block (JPEG APP1 or raw TIFF) and returns its GPS location
func decode(src io.Reader) (types.Coordinates, error) {
	x, err := exif.Decode(src)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		// JPEG scanning hits EOF when no APP1 segment exists
		if errors.Is(err, io.EOF) {
			return types.Coordinates{}, ErrNoGPS
		}
		return types.Coordinates{}, fmt.Errorf("%v: %w", err, ErrCorrupt)
	}

	lat, lon, err := x.LatLong()
	if err != nil {
		var missing exif.TagNotPresentError
		if errors.As(err, &missing) {
			return types.Coordinates{}, ErrNoGPS
		}
		return types.Coordinates{}, fmt.Errorf("gps record: %v: %w", err, ErrCorrupt)
	}
	if !valid(lat, -90, 90) || !valid(lon, -180, 180) {
		return types.Coordinates{}, fmt.Errorf("gps record out of range (%f, %f): %w", lat, lon, ErrCorrupt)
	}
	return types.Coordinates{Latitude: lat, Longitude: lon}, nil
}

func valid(v, lo, hi float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= lo && v <= hi
}

const maxChunkSize = 16 << 20

// pngExif returns the payload of the eXIf chunk of a PNG file
func pngExif(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	if _, err := br.Discard(8); err != nil {
		return nil, fmt.Errorf("png signature: %v: %w", err, ErrCorrupt)
	}
	var hdr [8]byte
	for {
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrNoGPS
			}
			return nil, fmt.Errorf("png chunk header: %v: %w", err, ErrCorrupt)
		}
		length := int64(binary.BigEndian.Uint32(hdr[0:4]))
		switch string(hdr[4:8]) {
		case "eXIf":
			if length > maxChunkSize {
				return nil, fmt.Errorf("png eXIf chunk of %d bytes: %w", length, ErrCorrupt)
			}
			payload := make([]byte, length)
			if _, err := io.ReadFull(br, payload); err != nil {
				return nil, fmt.Errorf("png eXIf chunk: %v: %w", err, ErrCorrupt)
			}
			return payload, nil
		case "IEND":
			return nil, ErrNoGPS
		}
		if _, err := br.Discard(int(length) + 4); err != nil {
			return nil, fmt.Errorf("png chunk %q: %v: %w", hdr[4:8], err, ErrCorrupt)
		}
	}
}

// Classify maps a reader error to a diagnostic outcome
func Classify(err error) types.Outcome {
	switch {
	case err == nil:
		return types.OutcomeFound
	case errors.Is(err, ErrNoGPS), errors.Is(err, ErrUnsupportedContainer):
		return types.OutcomeMetadataAbsent
	case errors.Is(err, ErrCorrupt):
		return types.OutcomeMetadataCorrupt
	default:
		return types.OutcomeConversionFailure
	}
}
