package crop

import (
	"fmt"
	"math"
)

// Adjustments are percentage deltas applied after cropping. Each value is in [-100, 100].
type Adjustments struct {
	Brightness int `json:"brightness"`
	Contrast   int `json:"contrast"`
	Saturation int `json:"saturation"`
}

// IsZero reports whether applying a would leave pixels unchanged.
func (a Adjustments) IsZero() bool {
	return a.Brightness == 0 && a.Contrast == 0 && a.Saturation == 0
}

func (a Adjustments) Validate() error {
	for _, v := range []struct {
		name  string
		value int
	}{
		{"brightness", a.Brightness},
		{"contrast", a.Contrast},
		{"saturation", a.Saturation},
	} {
		if v.value < -100 || v.value > 100 {
			return fmt.Errorf("%s %d out of range [-100,100]", v.name, v.value)
		}
	}
	return nil
}

// With returns a copy of a with the named adjustment set to value.
func (a Adjustments) With(name string, value int) (Adjustments, error) {
	switch name {
	case "brightness":
		a.Brightness = value
	case "contrast":
		a.Contrast = value
	case "saturation":
		a.Saturation = value
	default:
		return a, fmt.Errorf("unknown adjustment %q", name)
	}
	return a, a.Validate()
}

// RGBToHSL converts 8-bit RGB to hue, saturation and lightness in [0,1].
// Achromatic input yields h = s = 0.
func RGBToHSL(r8, g8, b8 uint8) (h, s, l float64) {
	r := float64(r8) / 255
	g := float64(g8) / 255
	b := float64(b8) / 255

	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	l = (max + min) / 2
	if max == min {
		return 0, 0, l
	}
	d := max - min
	if l > 0.5 {
		s = d / (2 - max - min)
	} else {
		s = d / (max + min)
	}
	switch max {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	h /= 6
	return h, s, l
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	}
	return p
}

// HSLToRGB converts hue, saturation and lightness in [0,1] back to rounded 8-bit RGB.
func HSLToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := toByte(l * 255)
		return v, v, v
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return toByte(hueToRGB(p, q, h+1.0/3) * 255),
		toByte(hueToRGB(p, q, h) * 255),
		toByte(hueToRGB(p, q, h-1.0/3) * 255)
}

// ContrastFactor returns the multiplier for contrast in [-100,100].
// At +100 the factor is infinite; contrastChannel handles that as a threshold.
func ContrastFactor(contrast int) float64 {
	c := float64(contrast) / 100
	if c >= 1 {
		return math.Inf(1)
	}
	return 259 * (c + 1) / (255 * (1 - c))
}

func contrastChannel(factor float64, v uint8) uint8 {
	if math.IsInf(factor, 1) {
		switch {
		case v > 128:
			return 255
		case v < 128:
			return 0
		}
		return 128
	}
	return toByte(factor*(float64(v)-128) + 128)
}

// ApplyAdjustments rewrites an RGBA byte buffer in place. Brightness and saturation
// scale HSL lightness and saturation; contrast is applied to the resulting RGB.
// Alpha bytes are never touched.
func ApplyAdjustments(pix []uint8, adj Adjustments) {
	if adj.IsZero() {
		return
	}
	brightness := float64(adj.Brightness) / 100
	saturation := float64(adj.Saturation) / 100
	factor := ContrastFactor(adj.Contrast)

	for i := 0; i+3 < len(pix); i += 4 {
		r, g, b := pix[i], pix[i+1], pix[i+2]

		h, s, l := RGBToHSL(r, g, b)
		if brightness != 0 {
			l = clamp(l*(1+brightness), 0, 1)
		}
		if saturation != 0 {
			s = clamp(s*(1+saturation), 0, 1)
		}
		r, g, b = HSLToRGB(h, s, l)

		if adj.Contrast != 0 {
			r = contrastChannel(factor, r)
			g = contrastChannel(factor, g)
			b = contrastChannel(factor, b)
		}
		pix[i], pix[i+1], pix[i+2] = r, g, b
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// toByte rounds half away from zero and clamps to [0,255].
func toByte(v float64) uint8 {
	return uint8(clamp(math.Round(v), 0, 255))
}
