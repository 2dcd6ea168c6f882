// Package bmff locates the Exif item inside ISO base media files such as
// HEIF/HEIC and AVIF photos.
//
// Item data in these containers is addressed by absolute file offsets stored
// in the meta box, so parsing needs random access to the whole file. A plain
// stream cannot be used.
package bmff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNoExif is returned when the file carries no Exif item
	ErrNoExif = errors.New("bmff: no exif item")
	// ErrMalformed is returned when box structure cannot be parsed
	ErrMalformed = errors.New("bmff: malformed box")
)

// MaxMetaSize bounds the size of the meta box read into memory
const MaxMetaSize = 16 << 20

// MaxExifSize bounds the size of the Exif item payload
const MaxExifSize = 16 << 20

type box struct {
	typ    string
	offset int64 // start of payload
	size   int64 // payload size
}

type extent struct {
	offset uint64
	length uint64
}

type location struct {
	method     uint16
	baseOffset uint64
	extents    []extent
}

// ExifPayload returns the TIFF encoded Exif block of the file of the given size.
// The returned slice begins with the TIFF byte order mark.
func ExifPayload(r io.ReaderAt, size int64) ([]byte, error) {
	meta, err := findBox(r, 0, size, "meta")
	if err != nil {
		return nil, err
	}
	if meta.size < 4 || meta.size > MaxMetaSize {
		return nil, fmt.Errorf("meta box of %d bytes: %w", meta.size, ErrMalformed)
	}
	buf := make([]byte, meta.size)
	if _, err := r.ReadAt(buf, meta.offset); err != nil {
		return nil, fmt.Errorf("reading meta box: %w", err)
	}

	// meta is a full box: skip version and flags
	children := bytes.NewReader(buf[4:])
	var (
		exifID uint32
		found  bool
		locs   map[uint32]location
	)
	for children.Len() > 0 {
		b, payload, err := nextBox(children)
		if err != nil {
			return nil, err
		}
		switch b.typ {
		case "iinf":
			exifID, found, err = parseIinf(payload)
		case "iloc":
			locs, err = parseIloc(payload)
		}
		if err != nil {
			return nil, err
		}
	}
	if !found {
		return nil, ErrNoExif
	}
	loc, ok := locs[exifID]
	if !ok {
		return nil, fmt.Errorf("exif item %d has no location: %w", exifID, ErrMalformed)
	}
	data, err := readItem(r, size, loc)
	if err != nil {
		return nil, err
	}
	return tiffPayload(data)
}

// findBox scans sibling boxes in [start, end) for the first box of type typ
func findBox(r io.ReaderAt, start, end int64, typ string) (box, error) {
	var hdr [16]byte
	for off := start; off < end; {
		if end-off < 8 {
			return box{}, fmt.Errorf("truncated box header at %d: %w", off, ErrMalformed)
		}
		if _, err := r.ReadAt(hdr[:8], off); err != nil {
			return box{}, fmt.Errorf("reading box header at %d: %w", off, err)
		}
		size := int64(binary.BigEndian.Uint32(hdr[0:4]))
		name := string(hdr[4:8])
		headerLen := int64(8)
		switch size {
		case 0:
			size = end - off
		case 1:
			if _, err := r.ReadAt(hdr[8:16], off+8); err != nil {
				return box{}, fmt.Errorf("reading large box size at %d: %w", off, err)
			}
			size = int64(binary.BigEndian.Uint64(hdr[8:16]))
			headerLen = 16
		}
		if size < headerLen || size > end-off {
			return box{}, fmt.Errorf("box %q at %d has size %d: %w", name, off, size, ErrMalformed)
		}
		if name == typ {
			return box{typ: name, offset: off + headerLen, size: size - headerLen}, nil
		}
		off += size
	}
	return box{}, ErrNoExif
}

// nextBox reads one box from an in-memory buffer
func nextBox(r *bytes.Reader) (box, []byte, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return box{}, nil, fmt.Errorf("reading child box header: %w", ErrMalformed)
	}
	size := uint64(binary.BigEndian.Uint32(hdr[0:4]))
	headerLen := uint64(8)
	switch size {
	case 0:
		size = uint64(r.Len()) + headerLen
	case 1:
		var large [8]byte
		if _, err := io.ReadFull(r, large[:]); err != nil {
			return box{}, nil, fmt.Errorf("reading large child box size: %w", ErrMalformed)
		}
		size = binary.BigEndian.Uint64(large[:])
		headerLen = 16
	}
	if size < headerLen || size-headerLen > uint64(r.Len()) {
		return box{}, nil, fmt.Errorf("child box %q has size %d: %w", string(hdr[4:8]), size, ErrMalformed)
	}
	payload := make([]byte, size-headerLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return box{}, nil, fmt.Errorf("reading child box %q: %w", string(hdr[4:8]), ErrMalformed)
	}
	return box{typ: string(hdr[4:8]), size: int64(len(payload))}, payload, nil
}

// parseIinf returns the item id of the first item whose type is Exif
func parseIinf(p []byte) (uint32, bool, error) {
	br := &byteReader{b: p}
	version := br.u8()
	br.skip(3)
	var count uint32
	if version == 0 {
		count = uint32(br.u16())
	} else {
		count = br.u32()
	}
	if br.err != nil {
		return 0, false, fmt.Errorf("iinf header: %w", ErrMalformed)
	}
	rest := bytes.NewReader(p[br.pos:])
	for i := uint32(0); i < count && rest.Len() > 0; i++ {
		b, payload, err := nextBox(rest)
		if err != nil {
			return 0, false, err
		}
		if b.typ != "infe" {
			continue
		}
		ib := &byteReader{b: payload}
		v := ib.u8()
		ib.skip(3)
		if v < 2 {
			continue
		}
		var id uint32
		if v == 2 {
			id = uint32(ib.u16())
		} else {
			id = ib.u32()
		}
		ib.skip(2) // item_protection_index
		itemType := ib.bytes(4)
		if ib.err != nil {
			return 0, false, fmt.Errorf("infe entry %d: %w", i, ErrMalformed)
		}
		if string(itemType) == "Exif" {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func parseIloc(p []byte) (map[uint32]location, error) {
	br := &byteReader{b: p}
	version := br.u8()
	br.skip(3)
	if version > 2 {
		return nil, fmt.Errorf("iloc version %d: %w", version, ErrMalformed)
	}
	sizes := br.u8()
	offsetSize, lengthSize := int(sizes>>4), int(sizes&0x0F)
	sizes = br.u8()
	baseOffsetSize, indexSize := int(sizes>>4), 0
	if version == 1 || version == 2 {
		indexSize = int(sizes & 0x0F)
	}
	var count uint32
	if version < 2 {
		count = uint32(br.u16())
	} else {
		count = br.u32()
	}

	// every entry carries at least its id, data reference index,
	// base offset and extent count
	idSize, methodSize := 2, 0
	if version == 2 {
		idSize = 4
	}
	if version == 1 || version == 2 {
		methodSize = 2
	}
	entrySize := idSize + methodSize + 2 + baseOffsetSize + 2
	if br.err != nil || uint64(count)*uint64(entrySize) > uint64(br.remaining()) {
		return nil, fmt.Errorf("iloc item count %d exceeds box size %d: %w", count, len(p), ErrMalformed)
	}
	extentSize := indexSize + offsetSize + lengthSize

	locs := make(map[uint32]location)
	for i := uint32(0); i < count && br.err == nil; i++ {
		var id uint32
		if version < 2 {
			id = uint32(br.u16())
		} else {
			id = br.u32()
		}
		var loc location
		if version == 1 || version == 2 {
			loc.method = br.u16() & 0x0F
		}
		br.skip(2) // data_reference_index
		loc.baseOffset = br.uintN(baseOffsetSize)
		n := br.u16()
		if int(n)*extentSize > br.remaining() || (extentSize == 0 && n > 1) {
			return nil, fmt.Errorf("iloc item %d extent count %d: %w", id, n, ErrMalformed)
		}
		for e := uint16(0); e < n && br.err == nil; e++ {
			if indexSize > 0 {
				br.uintN(indexSize)
			}
			off := br.uintN(offsetSize)
			length := br.uintN(lengthSize)
			loc.extents = append(loc.extents, extent{offset: off, length: length})
		}
		locs[id] = loc
	}
	if br.err != nil {
		return nil, fmt.Errorf("iloc entries: %w", ErrMalformed)
	}
	return locs, nil
}

func readItem(r io.ReaderAt, size int64, loc location) ([]byte, error) {
	if loc.method != 0 {
		return nil, fmt.Errorf("construction method %d not supported: %w", loc.method, ErrMalformed)
	}
	if len(loc.extents) == 0 {
		return nil, fmt.Errorf("exif item without extents: %w", ErrMalformed)
	}
	var out []byte
	for _, e := range loc.extents {
		start := loc.baseOffset + e.offset
		if start > uint64(size) {
			return nil, fmt.Errorf("extent offset %d beyond file size %d: %w", start, size, ErrMalformed)
		}
		length := e.length
		if length == 0 {
			length = uint64(size) - start
		}
		if length > uint64(size)-start || uint64(len(out))+length > MaxExifSize {
			return nil, fmt.Errorf("extent of %d bytes at %d out of range: %w", length, start, ErrMalformed)
		}
		chunk := make([]byte, length)
		if _, err := r.ReadAt(chunk, int64(start)); err != nil {
			return nil, fmt.Errorf("reading exif extent: %w", err)
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// tiffPayload strips the Exif item header: a 4 byte offset to the TIFF
// header, usually followed by the "Exif\0\0" marker.
func tiffPayload(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("exif item of %d bytes: %w", len(data), ErrMalformed)
	}
	skip := uint64(binary.BigEndian.Uint32(data[0:4])) + 4
	if skip < uint64(len(data)) && isTIFFHeader(data[skip:]) {
		return data[skip:], nil
	}
	for _, bom := range [][]byte{[]byte("II*\x00"), []byte("MM\x00*")} {
		if i := bytes.Index(data, bom); i >= 0 {
			return data[i:], nil
		}
	}
	return nil, fmt.Errorf("exif item has no tiff header: %w", ErrMalformed)
}

func isTIFFHeader(b []byte) bool {
	return bytes.HasPrefix(b, []byte("II*\x00")) || bytes.HasPrefix(b, []byte("MM\x00*"))
}

// byteReader decodes big-endian fields and remembers the first overrun
type byteReader struct {
	b   []byte
	pos int
	err error
}

func (r *byteReader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.b) {
		r.err = io.ErrUnexpectedEOF
		return nil
	}
	out := r.b[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *byteReader) skip(n int) { r.bytes(n) }

func (r *byteReader) remaining() int { return len(r.b) - r.pos }

func (r *byteReader) u8() uint8 {
	if b := r.bytes(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *byteReader) u16() uint16 {
	if b := r.bytes(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (r *byteReader) u32() uint32 {
	if b := r.bytes(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (r *byteReader) uintN(n int) uint64 {
	switch n {
	case 0:
		return 0
	case 4:
		return uint64(r.u32())
	case 8:
		if b := r.bytes(8); b != nil {
			return binary.BigEndian.Uint64(b)
		}
		return 0
	default:
		r.err = ErrMalformed
		return 0
	}
}
