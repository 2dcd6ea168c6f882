package types

import "fmt"

// Coordinates is a latitude/longitude pair read from photo metadata.
// A zero value carries no meaning on its own; absence is always reported
// alongside it as a separate boolean.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// Format identifies an image container format
type Format int

const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatTIFF
	FormatHEIF
	FormatWebP
	FormatPNG
)

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatTIFF:
		return "tiff"
	case FormatHEIF:
		return "heif"
	case FormatWebP:
		return "webp"
	case FormatPNG:
		return "png"
	default:
		return "unknown"
	}
}

// Outcome classifies how an extraction attempt ended. It is diagnostic only:
// callers of the extractor see coordinates or nothing.
type Outcome int

const (
	OutcomeFound Outcome = iota
	OutcomeResourceUnavailable
	OutcomeMetadataAbsent
	OutcomeMetadataCorrupt
	OutcomeConversionFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeResourceUnavailable:
		return "resource_unavailable"
	case OutcomeMetadataAbsent:
		return "metadata_absent"
	case OutcomeMetadataCorrupt:
		return "metadata_corrupt"
	case OutcomeConversionFailure:
		return "conversion_failure"
	default:
		return "unknown"
	}
}

// TransientContainer describes the on-disk copy made for the fallback read.
type TransientContainer struct {
	Path string
	Size int64
}
