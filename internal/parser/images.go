package parser

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/dgallion1/bookgest/internal/doctree"
)

type decodedImage struct {
	pixels []byte
	width  int
	height int
}

// decodeImage decodes any registered format into a tightly packed
// non-premultiplied RGBA buffer.
func decodeImage(data []byte) (decodedImage, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return decodedImage{}, fmt.Errorf("decode image: %w", err)
	}
	bounds := src.Bounds()
	if bounds.Empty() {
		return decodedImage{}, fmt.Errorf("decode %s image: empty bounds", format)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	return decodedImage{pixels: dst.Pix, width: bounds.Dx(), height: bounds.Dy()}, nil
}

var errNotDataURI = errors.New("not a data uri")

// decodeDataURI returns the payload of a data: URI.
func decodeDataURI(uri string) ([]byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, errNotDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("data uri without payload")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			return nil, fmt.Errorf("data uri base64: %w", err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("data uri escape: %w", err)
	}
	return []byte(s), nil
}

// Limits caps the image work handed to the assembler. Zero disables a limit.
type Limits struct {
	MaxImages        int
	MaxImagesPerPage int
	MinImageArea     int
}

// ApplyImageLimits sorts blocks by (PageIndex, Order) and drops images that
// are too small or exceed the per-page or total caps. It returns the kept
// blocks and how many images were dropped.
func ApplyImageLimits(blocks []doctree.RawBlock, lim Limits) ([]doctree.RawBlock, int) {
	sorted := make([]doctree.RawBlock, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	out := sorted[:0]
	perPage := make(map[int]int)
	total, dropped := 0, 0
	for _, b := range sorted {
		if b.Kind != doctree.RawImage {
			out = append(out, b)
			continue
		}
		switch {
		case lim.MinImageArea > 0 && areaBelow(b.Width, b.Height, lim.MinImageArea),
			lim.MaxImagesPerPage > 0 && perPage[b.PageIndex] >= lim.MaxImagesPerPage,
			lim.MaxImages > 0 && total >= lim.MaxImages:
			dropped++
			continue
		}
		perPage[b.PageIndex]++
		total++
		out = append(out, b)
	}
	return out, dropped
}

// areaBelow reports whether width*height < min without computing the
// product, which can overflow for hostile dimensions.
func areaBelow(width, height, min int) bool {
	if width <= 0 || height <= 0 {
		return true
	}
	return width <= (min-1)/height
}
