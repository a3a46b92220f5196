package crop

import "math"

// Viewport is the area the editor shows the source in.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

var (
	// DesktopViewport is an 800px dialog with 24px padding and a 400px crop area.
	DesktopViewport = Viewport{Width: 752, Height: 400}
	// MobileViewport is a 95% wide dialog on a 375px screen with a 300px crop area.
	MobileViewport = Viewport{Width: 343, Height: 300}
)

// ViewportFor picks the editor viewport for the device class.
func ViewportFor(mobile bool) Viewport {
	if mobile {
		return MobileViewport
	}
	return DesktopViewport
}

// PreviewFit returns the on-screen size of a w×h source contained in vp.
// Only preview sizing depends on the viewport; crop geometry is computed in source pixels.
func PreviewFit(w, h int, vp Viewport) Size {
	if w <= 0 || h <= 0 || vp.Width <= 0 || vp.Height <= 0 {
		return Size{}
	}
	scale := math.Min(vp.Width/float64(w), vp.Height/float64(h))
	return Size{Width: float64(w) * scale, Height: float64(h) * scale}
}
