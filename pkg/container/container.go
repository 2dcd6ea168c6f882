// Package container identifies image container formats from their leading bytes.
package container

import (
	"bytes"

	"github.com/menta2k/geotag/pkg/types"
)

// SniffLen is the number of leading bytes Detect needs to decide a format
const SniffLen = 16

var heifBrands = [][]byte{
	[]byte("heic"), []byte("heix"), []byte("hevc"), []byte("hevx"),
	[]byte("heim"), []byte("heis"), []byte("mif1"), []byte("msf1"),
	[]byte("avif"),
}

// Detect returns the container format of a file whose first bytes are header
func Detect(header []byte) types.Format {
	switch {
	case len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF:
		return types.FormatJPEG
	case bytes.HasPrefix(header, []byte("II*\x00")), bytes.HasPrefix(header, []byte("MM\x00*")):
		return types.FormatTIFF
	case bytes.HasPrefix(header, []byte("\x89PNG\r\n\x1a\n")):
		return types.FormatPNG
	case len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WEBP")):
		return types.FormatWebP
	case len(header) >= 12 && bytes.Equal(header[4:8], []byte("ftyp")):
		major := header[8:12]
		for _, b := range heifBrands {
			if bytes.Equal(major, b) {
				return types.FormatHEIF
			}
		}
	}
	return types.FormatUnknown
}
