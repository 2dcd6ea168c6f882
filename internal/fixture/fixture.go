// Package fixture synthesizes small photos with embedded EXIF metadata for tests.
package fixture

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"sort"

	"github.com/chai2010/webp"
)

const (
	typeByte     = 1
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
)

const (
	tagOrientation = 0x0112
	tagGPSPointer  = 0x8825
	tagGPSVersion  = 0x0000
	tagGPSLatRef   = 0x0001
	tagGPSLat      = 0x0002
	tagGPSLonRef   = 0x0003
	tagGPSLon      = 0x0004
)

type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	value []byte
}

var le = binary.LittleEndian

// GPSTIFF returns a little-endian TIFF EXIF block with a GPS IFD for lat/lon
func GPSTIFF(lat, lon float64) []byte {
	latRef, lonRef := "N\x00", "E\x00"
	if lat < 0 {
		latRef = "S\x00"
	}
	if lon < 0 {
		lonRef = "W\x00"
	}
	gps := []entry{
		{tagGPSVersion, typeByte, 4, []byte{2, 3, 0, 0}},
		{tagGPSLatRef, typeASCII, 2, []byte(latRef)},
		{tagGPSLat, typeRational, 3, degrees(lat)},
		{tagGPSLonRef, typeASCII, 2, []byte(lonRef)},
		{tagGPSLon, typeRational, 3, degrees(lon)},
	}
	return buildTIFF(gps)
}

// NoGPSTIFF returns a TIFF EXIF block with an orientation tag and no GPS IFD
func NoGPSTIFF() []byte {
	return buildTIFF(nil)
}

// PartialGPSTIFF returns a TIFF EXIF block whose GPS IFD has a latitude only
func PartialGPSTIFF(lat float64) []byte {
	return buildTIFF([]entry{
		{tagGPSVersion, typeByte, 4, []byte{2, 3, 0, 0}},
		{tagGPSLatRef, typeASCII, 2, []byte("N\x00")},
		{tagGPSLat, typeRational, 3, degrees(lat)},
	})
}

func buildTIFF(gps []entry) []byte {
	ifd0 := []entry{{tagOrientation, typeShort, 1, []byte{1, 0}}}
	if gps != nil {
		ifd0 = append(ifd0, entry{tagGPSPointer, typeLong, 1, make([]byte, 4)})
	}
	first := encodeIFD(8, ifd0)
	if gps != nil {
		gpsOffset := uint32(8 + len(first))
		le.PutUint32(ifd0[len(ifd0)-1].value, gpsOffset)
		first = encodeIFD(8, ifd0)
		first = append(first, encodeIFD(gpsOffset, gps)...)
	}
	out := []byte{'I', 'I', 42, 0, 8, 0, 0, 0}
	return append(out, first...)
}

// encodeIFD lays out one directory at offset start followed by its out-of-line values
func encodeIFD(start uint32, entries []entry) []byte {
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })
	dataOff := start + 2 + 12*uint32(len(entries)) + 4
	var head, data bytes.Buffer
	binary.Write(&head, le, uint16(len(entries)))
	for _, e := range entries {
		binary.Write(&head, le, e.tag)
		binary.Write(&head, le, e.typ)
		binary.Write(&head, le, e.count)
		if len(e.value) <= 4 {
			v := make([]byte, 4)
			copy(v, e.value)
			head.Write(v)
			continue
		}
		binary.Write(&head, le, dataOff+uint32(data.Len()))
		data.Write(e.value)
		if data.Len()%2 == 1 {
			data.WriteByte(0)
		}
	}
	binary.Write(&head, le, uint32(0))
	return append(head.Bytes(), data.Bytes()...)
}

// degrees encodes an absolute angle as three rationals: degrees, minutes, seconds
func degrees(v float64) []byte {
	v = math.Abs(v)
	d := math.Floor(v)
	mf := (v - d) * 60
	m := math.Floor(mf)
	s := (mf - m) * 60
	out := make([]byte, 24)
	le.PutUint32(out[0:], uint32(d))
	le.PutUint32(out[4:], 1)
	le.PutUint32(out[8:], uint32(m))
	le.PutUint32(out[12:], 1)
	le.PutUint32(out[16:], uint32(math.Round(s*1e6)))
	le.PutUint32(out[20:], 1000000)
	return out
}

func sampleImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 16), uint8(y * 20), 128, 255})
		}
	}
	return img
}

// JPEG returns a 16x12 JPEG. When tiff is non-nil it is embedded as an APP1 Exif segment.
func JPEG(tiff []byte) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, sampleImage(), &jpeg.Options{Quality: 80}); err != nil {
		panic(err)
	}
	encoded := buf.Bytes()
	if tiff == nil {
		return encoded
	}
	payload := append([]byte("Exif\x00\x00"), tiff...)
	app1 := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(app1[2:], uint16(len(payload)+2))
	out := append([]byte{}, encoded[:2]...)
	out = append(out, app1...)
	out = append(out, payload...)
	return append(out, encoded[2:]...)
}

// CorruptJPEG returns a JPEG whose Exif segment carries a truncated TIFF directory
func CorruptJPEG() []byte {
	tiff := GPSTIFF(1, 1)
	bad := append([]byte{}, tiff[:8]...)
	bad = append(bad, 0xFF, 0x7F) // 32767 entries, none present
	return JPEG(bad)
}

// PNG returns a 16x12 PNG. When tiff is non-nil it is stored in an eXIf chunk.
func PNG(tiff []byte) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, sampleImage()); err != nil {
		panic(err)
	}
	encoded := buf.Bytes()
	if tiff == nil {
		return encoded
	}
	// IEND is always the final 12 bytes
	iend := len(encoded) - 12
	out := append([]byte{}, encoded[:iend]...)
	out = append(out, pngChunk("eXIf", tiff)...)
	return append(out, encoded[iend:]...)
}

func pngChunk(typ string, data []byte) []byte {
	out := make([]byte, 8, 12+len(data))
	binary.BigEndian.PutUint32(out[0:], uint32(len(data)))
	copy(out[4:], typ)
	out = append(out, data...)
	crc := crc32.ChecksumIEEE(out[4:])
	return binary.BigEndian.AppendUint32(out, crc)
}

// WebP returns a lossless 16x12 WebP. When tiff is non-nil it is stored in an EXIF chunk.
func WebP(tiff []byte) ([]byte, error) {
	data, err := webp.EncodeLosslessRGBA(sampleImage())
	if err != nil {
		return nil, err
	}
	if tiff == nil {
		return data, nil
	}
	return webp.SetMetadata(data, tiff, "EXIF")
}

// HEIF returns a minimal HEIC container: ftyp, a meta box describing an image
// item and, when tiff is non-nil, an Exif item, followed by mdat.
func HEIF(tiff []byte) []byte {
	imageData := []byte{0x00, 0x00, 0x00, 0x04, 0x26, 0x01, 0xAF, 0x00}
	var exifData []byte
	if tiff != nil {
		exifData = append([]byte{0, 0, 0, 6}, "Exif\x00\x00"...)
		exifData = append(exifData, tiff...)
	}

	ftyp := bmffBox("ftyp", append([]byte("heic\x00\x00\x00\x00"), "mif1heic"...))

	// meta size does not depend on the offsets written into iloc
	meta := heifMeta(0, len(imageData), exifData != nil, len(exifData))
	mdatStart := uint32(len(ftyp) + len(meta) + 8)
	meta = heifMeta(mdatStart, len(imageData), exifData != nil, len(exifData))

	out := append([]byte{}, ftyp...)
	out = append(out, meta...)
	return append(out, bmffBox("mdat", append(append([]byte{}, imageData...), exifData...))...)
}

func heifMeta(mdatStart uint32, imageLen int, withExif bool, exifLen int) []byte {
	hdlr := bmffFullBox("hdlr", 0, append(append(make([]byte, 4), "pict"...), make([]byte, 13)...))

	items := [][]byte{infe(1, "hvc1")}
	if withExif {
		items = append(items, infe(2, "Exif"))
	}
	iinfBody := binary.BigEndian.AppendUint16(nil, uint16(len(items)))
	for _, it := range items {
		iinfBody = append(iinfBody, it...)
	}
	iinf := bmffFullBox("iinf", 0, iinfBody)

	// version 0, offset_size 4, length_size 4, base_offset_size 0
	iloc := []byte{0x44, 0x00}
	iloc = binary.BigEndian.AppendUint16(iloc, uint16(len(items)))
	iloc = ilocItem(iloc, 1, mdatStart, uint32(imageLen))
	if withExif {
		iloc = ilocItem(iloc, 2, mdatStart+uint32(imageLen), uint32(exifLen))
	}

	body := append([]byte{}, hdlr...)
	body = append(body, iinf...)
	body = append(body, bmffFullBox("iloc", 0, iloc)...)
	return bmffFullBox("meta", 0, body)
}

func infe(id uint16, typ string) []byte {
	body := binary.BigEndian.AppendUint16(nil, id)
	body = append(body, 0, 0)
	body = append(body, typ...)
	body = append(body, 0)
	return bmffFullBox("infe", 2, body)
}

func ilocItem(b []byte, id uint16, offset, length uint32) []byte {
	b = binary.BigEndian.AppendUint16(b, id)
	b = binary.BigEndian.AppendUint16(b, 0) // data_reference_index
	b = binary.BigEndian.AppendUint16(b, 1) // extent_count
	b = binary.BigEndian.AppendUint32(b, offset)
	return binary.BigEndian.AppendUint32(b, length)
}

func bmffBox(typ string, payload []byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, uint32(8+len(payload)))
	out = append(out, typ...)
	return append(out, payload...)
}

func bmffFullBox(typ string, version byte, payload []byte) []byte {
	return bmffBox(typ, append([]byte{version, 0, 0, 0}, payload...))
}
