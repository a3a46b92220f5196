package crop

import "math"

// Orientation of an image or an aspect ratio.
type Orientation string

const (
	Landscape Orientation = "landscape"
	// Portrait also covers square ratios.
	Portrait Orientation = "portrait"
)

// OrientationOf classifies a width/height ratio.
func OrientationOf(ratio float64) Orientation {
	if ratio > 1 {
		return Landscape
	}
	return Portrait
}

// AspectChoice is the aspect ratio actually used for cropping a given source.
type AspectChoice struct {
	Requested float64 `json:"requested"`
	Effective float64 `json:"effective"`
	Inverted  bool    `json:"inverted"`
}

// Toggle flips to the reciprocal of the active ratio regardless of fit.
func (c AspectChoice) Toggle() AspectChoice {
	c.Effective = 1 / c.Effective
	c.Inverted = !c.Inverted
	return c
}

// FitScore is min(a,b)/max(a,b); 1 means identical ratios.
func FitScore(a, b float64) float64 {
	return math.Min(a, b) / math.Max(a, b)
}

// Reconcile picks between requested and its reciprocal for an image of the given
// natural size. Matching orientations keep the requested ratio. Otherwise the ratio
// that fits the image better wins, and a tie goes to the reciprocal.
func Reconcile(naturalWidth, naturalHeight int, requested float64) AspectChoice {
	choice := AspectChoice{Requested: requested, Effective: requested}
	if naturalWidth <= 0 || naturalHeight <= 0 || requested <= 0 {
		return choice
	}
	imageRatio := float64(naturalWidth) / float64(naturalHeight)
	if OrientationOf(imageRatio) == OrientationOf(requested) {
		return choice
	}
	inverted := 1 / requested
	if FitScore(inverted, imageRatio) >= FitScore(requested, imageRatio) {
		return choice.Toggle()
	}
	return choice
}
