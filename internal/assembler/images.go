package assembler

import (
	"sync"

	"github.com/dgallion1/bookgest/internal/doctree"
	"github.com/dgallion1/bookgest/internal/raster"
)

type encodedImage struct {
	src string
	err error
}

// encodeImages PNG-encodes every image block with at most workers running
// at once. Results are indexed by block position so assembly order does not
// depend on completion order.
func encodeImages(blocks []doctree.RawBlock, workers int) []encodedImage {
	out := make([]encodedImage, len(blocks))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, b := range blocks {
		if b.Kind != doctree.RawImage {
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, b doctree.RawBlock) {
			defer wg.Done()
			defer func() { <-sem }()
			png, err := raster.Encode(b.Width, b.Height, b.Pixels)
			if err != nil {
				out[i] = encodedImage{err: err}
				return
			}
			out[i] = encodedImage{src: raster.DataURI(png)}
		}(i, b)
	}
	wg.Wait()
	return out
}
