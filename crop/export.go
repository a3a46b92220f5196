package crop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Stage is a step of one export.
type Stage string

const (
	StageIdle          Stage = "idle"
	StageLoadingSource Stage = "loading-source"
	StageRendering     Stage = "rendering"
	StageEncoding      Stage = "encoding"
	StageDone          Stage = "done"
	StageFailed        Stage = "failed"
)

const (
	MIMEJPEG       = "image/jpeg"
	DefaultQuality = 0.95
)

// QualityPresets are the output qualities offered to users.
var QualityPresets = []float64{0.95, 0.85, 0.75, 0.65}

// Blob is an encoded image ready to hand to an uploader.
type Blob struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

func (b *Blob) Size() int {
	return len(b.Data)
}

func (b *Blob) Reader() io.Reader {
	return bytes.NewReader(b.Data)
}

// BlobName is the file name given to an export finished at t.
func BlobName(t time.Time) string {
	return fmt.Sprintf("cropped-image-%d.jpg", t.UnixMilli())
}

// Exporter renders and encodes crops. It keeps no state between calls.
type Exporter struct {
	Loader SourceLoader
	// OnStage, when set, observes every stage transition.
	OnStage func(Stage)
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewExporter(loader SourceLoader) *Exporter {
	return &Exporter{Loader: loader}
}

// Export loads src, rotates it into the safe box, extracts geo.PixelRect, applies adj
// and encodes JPEG at quality in (0,1]. It never returns a partial blob.
func (e *Exporter) Export(ctx context.Context, src SourceImage, geo CropGeometry, rotation float64, adj Adjustments, quality float64) (*Blob, error) {
	logger := zerolog.Ctx(ctx).With().Str("source", src.URL).Logger()
	e.stage(&logger, StageIdle)

	blob, err := e.export(ctx, &logger, src, geo, rotation, adj, quality)
	if err != nil {
		e.stage(&logger, StageFailed)
		logger.Debug().Err(err).Msg("export failed")
		return nil, err
	}
	e.stage(&logger, StageDone)
	return blob, nil
}

func (e *Exporter) export(ctx context.Context, logger *zerolog.Logger, src SourceImage, geo CropGeometry, rotation float64, adj Adjustments, quality float64) (*Blob, error) {
	if quality <= 0 || quality > 1 || math.IsNaN(quality) {
		return nil, newError(ReasonInvalidQuality, "export", fmt.Errorf("quality %g not in (0,1]", quality))
	}
	if err := adj.Validate(); err != nil {
		return nil, newError(ReasonInvalidEditState, "export", err)
	}
	if e.Loader == nil {
		return nil, newError(ReasonSourceLoad, "export", errNoLoader)
	}

	e.stage(logger, StageLoadingSource)
	img, err := e.Loader.Load(ctx, src.URL)
	if err != nil {
		return nil, newError(ReasonSourceLoad, "export", err)
	}

	e.stage(logger, StageRendering)
	out, err := Render(img, geo, rotation)
	if err != nil {
		return nil, err
	}
	if !adj.IsZero() {
		ApplyAdjustments(out.Pix, adj)
	}

	e.stage(logger, StageEncoding)
	data, err := EncodeJPEG(out, quality)
	if err != nil {
		return nil, err
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	return &Blob{
		Name:     BlobName(now()),
		MIMEType: MIMEJPEG,
		Data:     data,
		Width:    out.Rect.Dx(),
		Height:   out.Rect.Dy(),
	}, nil
}

func (e *Exporter) stage(logger *zerolog.Logger, s Stage) {
	logger.Debug().Str("stage", string(s)).Msg("export stage")
	if e.OnStage != nil {
		e.OnStage(s)
	}
}

// Render draws img rotated by rotation degrees about the centre of its safe box and
// returns the pixels under geo.PixelRect as a new image of exactly that size.
// img is not modified.
func Render(img image.Image, geo CropGeometry, rotation float64) (*image.NRGBA, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, newError(ReasonSourceLoad, "render", errors.New("empty source"))
	}
	if side := SafeSide(w, h); side != geo.SafeSide {
		return nil, newError(ReasonInvalidCropGeometry, "render",
			fmt.Errorf("planned for safe side %d, source needs %d", geo.SafeSide, side))
	}
	bw, bh := rotatedSize(w, h, rotation)
	if bounds := image.Pt(int(math.Round(bw)), int(math.Round(bh))); bounds != geo.Bounds {
		return nil, newError(ReasonInvalidCropGeometry, "render",
			fmt.Errorf("planned for bounds %v, rotation gives %v", geo.Bounds, bounds))
	}
	if err := geo.validate(); err != nil {
		return nil, err
	}

	// The surface uses safe-box coordinates; only the read-back window is backed by memory.
	window := geo.SafeRect()
	surface := image.NewNRGBA(window)

	origin := geo.Origin()
	cx := float64(origin.X) + bw/2
	cy := float64(origin.Y) + bh/2
	mx := float64(b.Min.X) + float64(w)/2
	my := float64(b.Min.Y) + float64(h)/2
	sin, cos := sinCos(rotation)

	s2d := f64.Aff3{
		cos, -sin, cx - cos*mx + sin*my,
		sin, cos, cy - sin*mx - cos*my,
	}
	draw.BiLinear.Transform(surface, s2d, img, b, draw.Over, nil)

	return imaging.Crop(surface, window), nil
}

// EncodeJPEG encodes img at quality in (0,1].
func EncodeJPEG(img image.Image, quality float64) ([]byte, error) {
	if quality <= 0 || quality > 1 || math.IsNaN(quality) {
		return nil, newError(ReasonInvalidQuality, "encode", fmt.Errorf("quality %g not in (0,1]", quality))
	}
	var buf bytes.Buffer
	q := max(1, int(math.Round(quality*100)))
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
		return nil, newError(ReasonEncode, "encode", err)
	}
	if buf.Len() == 0 {
		return nil, newError(ReasonEncode, "encode", errors.New("encoder produced no data"))
	}
	return buf.Bytes(), nil
}
