package crop

import (
	"fmt"
	"image"
	"math"
)

// Size is a width/height pair in pixels. Preview sizes are fractional.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an integer pixel rectangle. For CropGeometry it is expressed in the
// coordinate frame of the rotated source's bounding box.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Rect) String() string {
	return fmt.Sprintf("rect(x=%d,y=%d,w=%d,h=%d)", r.X, r.Y, r.Width, r.Height)
}

// ZoomRange bounds the interactive zoom.
type ZoomRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

var (
	DefaultZoomRange = ZoomRange{Min: 1, Max: 3}
	WideZoomRange    = ZoomRange{Min: 0.1, Max: 10}
)

func (z ZoomRange) Clamp(v float64) float64 {
	return clamp(v, z.Min, z.Max)
}

// ZoomRangeFor widens the zoom range when the source is more than four times
// larger or smaller than its preview.
func ZoomRangeFor(naturalWidth int, preview Size) ZoomRange {
	if naturalWidth <= 0 || preview.Width <= 0 {
		return DefaultZoomRange
	}
	ratio := float64(naturalWidth) / preview.Width
	if ratio > 4 || ratio < 0.25 {
		return WideZoomRange
	}
	return DefaultZoomRange
}

// CropGeometry is derived from a source, an edit state and an aspect ratio. It is never stored.
type CropGeometry struct {
	PixelRect Rect        `json:"pixel_rect"`
	Aspect    float64     `json:"aspect"`
	Inverted  bool        `json:"inverted"`
	Zoom      float64     `json:"zoom"`
	Bounds    image.Point `json:"bounds"`
	SafeSide  int         `json:"safe_side"`
}

// Origin is the top-left corner of the rotated bounding box on the safe surface.
func (g CropGeometry) Origin() image.Point {
	return image.Pt((g.SafeSide-g.Bounds.X)/2, (g.SafeSide-g.Bounds.Y)/2)
}

// SafeRect is PixelRect translated into safe-surface coordinates.
func (g CropGeometry) SafeRect() image.Rectangle {
	return g.PixelRect.Rectangle().Add(g.Origin())
}

func (g CropGeometry) validate() error {
	r := g.PixelRect
	if r.Width < 1 || r.Height < 1 {
		return newError(ReasonInvalidCropGeometry, "plan", fmt.Errorf("degenerate %s", r))
	}
	safe := image.Rect(0, 0, g.SafeSide, g.SafeSide)
	if !g.SafeRect().In(safe) {
		return newError(ReasonInvalidCropGeometry, "plan",
			fmt.Errorf("%s exceeds safe box of side %d", r, g.SafeSide))
	}
	return nil
}

// SafeSide returns the side of the square surface that holds the source at any rotation.
func SafeSide(width, height int) int {
	maxSize := float64(max(width, height))
	return int(math.Ceil(2 * (maxSize / 2) * math.Sqrt2))
}

// sinCos snaps multiples of 90 degrees to exact values.
func sinCos(deg float64) (sin, cos float64) {
	if q := deg / 90; q == math.Trunc(q) {
		switch ((int64(q) % 4) + 4) % 4 {
		case 0:
			return 0, 1
		case 1:
			return 1, 0
		case 2:
			return 0, -1
		default:
			return -1, 0
		}
	}
	return math.Sincos(deg * math.Pi / 180)
}

// rotatedSize is the axis-aligned bounding box of a w×h rectangle rotated by deg.
func rotatedSize(w, h int, deg float64) (float64, float64) {
	sin, cos := sinCos(deg)
	sin, cos = math.Abs(sin), math.Abs(cos)
	fw, fh := float64(w), float64(h)
	return fw*cos + fh*sin, fw*sin + fh*cos
}

// Planner turns interactive edit state into a crop rectangle in source pixels.
type Planner struct {
	Zoom ZoomRange
}

// DefaultPlanner uses DefaultZoomRange.
var DefaultPlanner = Planner{Zoom: DefaultZoomRange}

// PlanCrop plans with DefaultPlanner and a preview equal to the natural size.
func PlanCrop(src SourceImage, edit EditState, aspect float64) (CropGeometry, error) {
	return DefaultPlanner.Plan(src, Size{}, edit, aspect)
}

// Plan computes the crop geometry. preview is the on-screen size of the unrotated
// source at zoom 1; offsets in edit are in preview pixels. A zero preview means
// offsets are already in source pixels.
//
// At zoom 1 the crop window is the largest aspect-shaped rectangle inside the rotated
// bounding box. Zoom shrinks the window. When the window fits inside the box it is kept
// inside; otherwise it is centred on that axis.
func (p Planner) Plan(src SourceImage, preview Size, edit EditState, aspect float64) (CropGeometry, error) {
	if src.NaturalWidth <= 0 || src.NaturalHeight <= 0 {
		return CropGeometry{}, newError(ReasonInvalidCropGeometry, "plan",
			fmt.Errorf("source size %dx%d", src.NaturalWidth, src.NaturalHeight))
	}
	if aspect <= 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) {
		return CropGeometry{}, newError(ReasonInvalidCropGeometry, "plan", fmt.Errorf("aspect %g", aspect))
	}
	if err := edit.Validate(); err != nil {
		return CropGeometry{}, err
	}

	zr := p.Zoom
	if zr.Min <= 0 || zr.Max < zr.Min {
		zr = DefaultZoomRange
	}
	zoom := zr.Clamp(edit.Zoom)

	scale := 1.0
	if preview.Width > 0 {
		scale = float64(src.NaturalWidth) / preview.Width
	}

	bw, bh := rotatedSize(src.NaturalWidth, src.NaturalHeight, edit.Rotation)
	bounds := image.Pt(int(math.Round(bw)), int(math.Round(bh)))

	var width, height int
	if bw/bh >= aspect {
		height = int(math.Round(bh / zoom))
		width = int(math.Round(float64(height) * aspect))
	} else {
		width = int(math.Round(bw / zoom))
		height = int(math.Round(float64(width) / aspect))
	}
	// Rounding can push a zoom-1 window one pixel past the box.
	if zoom >= 1 {
		if width > bounds.X {
			width = bounds.X
			height = int(math.Round(float64(width) / aspect))
		}
		if height > bounds.Y {
			height = bounds.Y
			width = int(math.Round(float64(height) * aspect))
		}
	}

	cx := bw/2 - edit.Offset.X*scale/zoom
	cy := bh/2 - edit.Offset.Y*scale/zoom

	geo := CropGeometry{
		PixelRect: Rect{
			X:      place(cx, width, bounds.X),
			Y:      place(cy, height, bounds.Y),
			Width:  width,
			Height: height,
		},
		Aspect:   aspect,
		Zoom:     zoom,
		Bounds:   bounds,
		SafeSide: SafeSide(src.NaturalWidth, src.NaturalHeight),
	}
	if err := geo.validate(); err != nil {
		return CropGeometry{}, err
	}
	return geo, nil
}

// place positions a span of length n centred at c inside [0, limit).
func place(c float64, n, limit int) int {
	if n > limit {
		return -int(math.Ceil(float64(n-limit) / 2))
	}
	pos := int(math.Round(c - float64(n)/2))
	return max(0, min(pos, limit-n))
}
