package crop

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
)

type memLoader map[string]image.Image

func (m memLoader) Load(ctx context.Context, url string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, ok := m[url]
	if !ok {
		return nil, fmt.Errorf("%s: not found", url)
	}
	return img, nil
}

// gateLoader blocks its blockOn-th call until release is closed.
type gateLoader struct {
	memLoader
	blockOn int
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func newGateLoader(m memLoader, blockOn int) *gateLoader {
	return &gateLoader{
		memLoader: m,
		blockOn:   blockOn,
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (l *gateLoader) Load(ctx context.Context, url string) (image.Image, error) {
	l.mu.Lock()
	l.calls++
	n := l.calls
	l.mu.Unlock()
	if n == l.blockOn {
		close(l.started)
		select {
		case <-l.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return l.memLoader.Load(ctx, url)
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// halves paints the left half of a w×h image left and the right half right.
func halves(w, h int, left, right color.NRGBA) *image.NRGBA {
	img := solid(w, h, left)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			img.SetNRGBA(x, y, right)
		}
	}
	return img
}

// noise is deterministic high-entropy content that compresses badly.
func noise(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	seed := uint32(2463534242)
	for i := 0; i < len(img.Pix); i += 4 {
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		img.Pix[i] = uint8(seed)
		img.Pix[i+1] = uint8(seed >> 8)
		img.Pix[i+2] = uint8(seed >> 16)
		img.Pix[i+3] = 255
	}
	return img
}

var (
	red  = color.NRGBA{R: 220, G: 20, B: 20, A: 255}
	blue = color.NRGBA{R: 20, G: 20, B: 220, A: 255}
)

func near(a, b uint8, tol int) bool {
	d := int(a) - int(b)
	return d >= -tol && d <= tol
}
