package photo

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Inspector reads basic photo properties without decoding pixel data
type Inspector struct {
	config Config
}

// Config holds configuration for the inspector
type Config struct {
	SupportedFormats []string
	MinImageSize     int
}

// New creates a new Inspector with default configuration
func New() *Inspector {
	return &Inspector{
		config: Config{
			SupportedFormats: []string{"jpeg", "png", "gif", "webp", "tiff", "bmp"},
			MinImageSize:     1,
		},
	}
}

// NewWithConfig creates a new Inspector with custom configuration
func NewWithConfig(config Config) *Inspector {
	return &Inspector{config: config}
}

// Info contains basic photo metadata
type Info struct {
	Format      string  `json:"format"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// InspectFile reads the header of the photo at path
func (i *Inspector) InspectFile(path string) (Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	return i.Inspect(file)
}

// Inspect reads dimensions and format from an image stream
func (i *Inspector) Inspect(reader io.Reader) (Info, error) {
	cfg, format, err := image.DecodeConfig(reader)
	if err != nil {
		return Info{}, fmt.Errorf("failed to decode image header: %w", err)
	}

	if !i.isFormatSupported(format) {
		return Info{}, fmt.Errorf("unsupported image format: %s", format)
	}

	if cfg.Width < i.config.MinImageSize || cfg.Height < i.config.MinImageSize {
		return Info{}, fmt.Errorf("image too small: %dx%d (minimum: %d)",
			cfg.Width, cfg.Height, i.config.MinImageSize)
	}

	return Info{
		Format:      format,
		Width:       cfg.Width,
		Height:      cfg.Height,
		AspectRatio: float64(cfg.Width) / float64(cfg.Height),
	}, nil
}

func (i *Inspector) isFormatSupported(format string) bool {
	for _, supported := range i.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}
