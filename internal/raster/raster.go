// Package raster encodes raw pixel buffers as minimal 8-bit RGBA PNG files.
package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// crcTable is the reflected 0xEDB88320 table, built once and never mutated.
var crcTable = crc32.MakeTable(crc32.IEEE)

const (
	bitDepth       = 8
	colorTypeRGBA  = 6
	bytesPerPixel  = 4
	filterTypeNone = 0

	// maxDimension is the largest width or height an IHDR chunk can carry.
	maxDimension = math.MaxInt32
)

// EncodingError reports pixel input that cannot be turned into a PNG.
type EncodingError struct {
	Width  int
	Height int
	Length int
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode png %dx%d (%d bytes): %s", e.Width, e.Height, e.Length, e.Reason)
}

// Components infers the number of bytes per pixel in a buffer of the given
// length: max(1, floor(length / (width*height))).
func Components(width, height, length int) int {
	if width <= 0 || height <= 0 {
		return 1
	}
	if c := length / width / height; c > 1 {
		return c
	}
	return 1
}

// Encode returns a PNG holding the pixels. One component is grayscale, three
// is RGB, four is RGBA; any other count reads the first byte of each pixel as
// gray. Output is deterministic.
func Encode(width, height int, pixels []byte) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, &EncodingError{Width: width, Height: height, Length: len(pixels), Reason: "non-positive dimensions"}
	}
	if width > maxDimension || height > maxDimension {
		return nil, &EncodingError{Width: width, Height: height, Length: len(pixels), Reason: "dimensions exceed PNG limit"}
	}
	// width*height may overflow; compare by division instead.
	if width > len(pixels)/height {
		return nil, &EncodingError{Width: width, Height: height, Length: len(pixels), Reason: "buffer shorter than declared dimensions"}
	}

	raw := scanlines(width, height, Components(width, height, len(pixels)), pixels)

	var compressed bytes.Buffer
	zw, err := zlib.NewWriterLevel(&compressed, zlib.BestSpeed)
	if err != nil {
		return nil, fmt.Errorf("zlib writer: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("deflate scanlines: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("deflate scanlines: %w", err)
	}

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(width))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(height))
	ihdr[8] = bitDepth
	ihdr[9] = colorTypeRGBA
	// compression, filter and interlace methods stay 0.

	var out bytes.Buffer
	out.Grow(len(pngSignature) + 3*12 + len(ihdr) + compressed.Len())
	out.Write(pngSignature)
	writeChunk(&out, "IHDR", ihdr)
	writeChunk(&out, "IDAT", compressed.Bytes())
	writeChunk(&out, "IEND", nil)
	return out.Bytes(), nil
}

// scanlines expands the source pixels to RGBA rows, each prefixed with the
// filter-type byte. Stride is width*4 + 1.
func scanlines(width, height, comps int, pixels []byte) []byte {
	stride := width*bytesPerPixel + 1
	raw := make([]byte, stride*height)
	for y := 0; y < height; y++ {
		row := raw[y*stride:]
		row[0] = filterTypeNone
		for x := 0; x < width; x++ {
			src := (y*width + x) * comps
			dst := 1 + x*bytesPerPixel
			switch comps {
			case 4:
				copy(row[dst:dst+4], pixels[src:src+4])
			case 3:
				row[dst], row[dst+1], row[dst+2] = pixels[src], pixels[src+1], pixels[src+2]
				row[dst+3] = 0xff
			default:
				g := pixels[src]
				row[dst], row[dst+1], row[dst+2], row[dst+3] = g, g, g, 0xff
			}
		}
	}
	return raw
}

func writeChunk(out *bytes.Buffer, typ string, data []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	out.Write(length[:])

	crc := crc32.Update(0, crcTable, []byte(typ))
	crc = crc32.Update(crc, crcTable, data)
	out.WriteString(typ)
	out.Write(data)

	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc)
	out.Write(sum[:])
}

// DataURI embeds PNG bytes in a self-contained data URI.
func DataURI(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
