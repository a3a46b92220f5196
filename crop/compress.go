package crop

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
)

// Compressor shrinks images that are too large to upload. It first fits the image
// into MaxWidth×MaxHeight, then re-encodes at decreasing quality until the result is
// at most MaxBytes or the quality floor is reached.
type Compressor struct {
	MaxBytes   int
	MaxWidth   int
	MaxHeight  int
	Quality    float64
	MinQuality float64
	Step       float64
}

// DefaultCompressor matches the upload limits of the order API.
var DefaultCompressor = Compressor{
	MaxBytes:   20 << 20,
	MaxWidth:   4000,
	MaxHeight:  4000,
	Quality:    0.8,
	MinQuality: 0.1,
	Step:       0.1,
}

// NeedsCompression reports whether a file of the given size and MIME type should go
// through Compress before upload.
func (c Compressor) NeedsCompression(size int64, mimeType string) bool {
	if !strings.HasPrefix(mimeType, "image/") {
		return false
	}
	return size > int64(c.MaxBytes)
}

// Compress returns a JPEG blob. When no quality reaches the size cap, the attempt at
// the quality floor is returned.
func (c Compressor) Compress(ctx context.Context, img image.Image) (*Blob, error) {
	if c.Quality <= 0 || c.Quality > 1 {
		return nil, newError(ReasonInvalidQuality, "compress", fmt.Errorf("quality %g not in (0,1]", c.Quality))
	}
	step := c.Step
	if step <= 0 {
		step = DefaultCompressor.Step
	}
	floor := math.Max(c.MinQuality, 0.01)

	b := img.Bounds()
	if (c.MaxWidth > 0 && b.Dx() > c.MaxWidth) || (c.MaxHeight > 0 && b.Dy() > c.MaxHeight) {
		maxW, maxH := c.MaxWidth, c.MaxHeight
		if maxW <= 0 {
			maxW = b.Dx()
		}
		if maxH <= 0 {
			maxH = b.Dy()
		}
		img = imaging.Fit(img, maxW, maxH, imaging.Lanczos)
	}

	logger := zerolog.Ctx(ctx)
	quality := c.Quality
	attempts := int(math.Ceil((c.Quality-floor)/step+1e-9)) + 1
	var data []byte
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := EncodeJPEG(img, quality)
		if err != nil {
			return nil, err
		}
		data = out
		logger.Debug().Float64("quality", quality).Int("bytes", len(data)).Msg("compressed")
		if c.MaxBytes <= 0 || len(data) <= c.MaxBytes {
			break
		}
		next := math.Round((quality-step)*100) / 100
		if next < floor {
			break
		}
		quality = next
	}

	fb := img.Bounds()
	return &Blob{
		Name:     BlobName(time.Now()),
		MIMEType: MIMEJPEG,
		Data:     data,
		Width:    fb.Dx(),
		Height:   fb.Dy(),
	}, nil
}
