package crop

import (
	"bytes"
	"math"
	"testing"
)

func TestHSLRoundTrip(t *testing.T) {
	stride := 1
	if testing.Short() {
		stride = 5
	}
	for r := 0; r < 256; r += stride {
		for g := 0; g < 256; g += stride {
			for b := 0; b < 256; b += stride {
				h, s, l := RGBToHSL(uint8(r), uint8(g), uint8(b))
				r2, g2, b2 := HSLToRGB(h, s, l)
				if !near(r2, uint8(r), 1) || !near(g2, uint8(g), 1) || !near(b2, uint8(b), 1) {
					t.Fatalf("(%d,%d,%d) -> hsl(%v,%v,%v) -> (%d,%d,%d)", r, g, b, h, s, l, r2, g2, b2)
				}
			}
		}
	}
}

func TestRGBToHSL_Achromatic(t *testing.T) {
	for _, v := range []uint8{0, 1, 128, 254, 255} {
		h, s, l := RGBToHSL(v, v, v)
		if h != 0 || s != 0 {
			t.Errorf("gray %d: got h=%v s=%v, want 0,0", v, h, s)
		}
		if want := float64(v) / 255; math.Abs(l-want) > 1e-12 {
			t.Errorf("gray %d: l=%v, want %v", v, l, want)
		}
	}
}

func TestRGBToHSL_Primaries(t *testing.T) {
	tests := []struct {
		r, g, b uint8
		h       float64
	}{
		{255, 0, 0, 0},
		{0, 255, 0, 1.0 / 3},
		{0, 0, 255, 2.0 / 3},
		{255, 0, 255, 5.0 / 6},
	}
	for _, tt := range tests {
		h, s, l := RGBToHSL(tt.r, tt.g, tt.b)
		if math.Abs(h-tt.h) > 1e-9 || s != 1 || l != 0.5 {
			t.Errorf("(%d,%d,%d): got hsl(%v,%v,%v), want hsl(%v,1,0.5)", tt.r, tt.g, tt.b, h, s, l, tt.h)
		}
	}
}

func TestApplyAdjustments_ZeroIsIdentity(t *testing.T) {
	buf := noise(32, 32).Pix
	want := bytes.Clone(buf)
	ApplyAdjustments(buf, Adjustments{})
	if !bytes.Equal(buf, want) {
		t.Fatal("zero adjustments changed the buffer")
	}
}

func TestApplyAdjustments_Contrast(t *testing.T) {
	factor := ContrastFactor(50)
	if math.Abs(factor-259*1.5/(255*0.5)) > 1e-12 {
		t.Fatalf("factor: got %v", factor)
	}
	buf := []uint8{100, 100, 100, 255}
	ApplyAdjustments(buf, Adjustments{Contrast: 50})
	for i, v := range buf[:3] {
		if v != 43 {
			t.Errorf("channel %d: got %d, want 43", i, v)
		}
	}
}

func TestApplyAdjustments_FullContrastThresholds(t *testing.T) {
	buf := []uint8{
		100, 100, 100, 255,
		200, 200, 200, 255,
		128, 128, 128, 255,
	}
	ApplyAdjustments(buf, Adjustments{Contrast: 100})
	want := []uint8{
		0, 0, 0, 255,
		255, 255, 255, 255,
		128, 128, 128, 255,
	}
	if !bytes.Equal(buf, want) {
		t.Errorf("got %v, want %v", buf, want)
	}
}

func TestApplyAdjustments_MinimumContrastFlattens(t *testing.T) {
	buf := []uint8{0, 90, 255, 255}
	ApplyAdjustments(buf, Adjustments{Contrast: -100})
	for i, v := range buf[:3] {
		if v != 128 {
			t.Errorf("channel %d: got %d, want 128", i, v)
		}
	}
}

func TestApplyAdjustments_Brightness(t *testing.T) {
	buf := []uint8{100, 100, 100, 255}
	ApplyAdjustments(buf, Adjustments{Brightness: 50})
	// l = 100/255 * 1.5
	if buf[0] != 150 || buf[1] != 150 || buf[2] != 150 {
		t.Errorf("got %v, want 150 gray", buf[:3])
	}

	buf = []uint8{200, 200, 200, 255}
	ApplyAdjustments(buf, Adjustments{Brightness: 100})
	if buf[0] != 255 {
		t.Errorf("brightness should clamp at white, got %v", buf[:3])
	}
}

func TestApplyAdjustments_DesaturateToGray(t *testing.T) {
	buf := []uint8{200, 40, 40, 255}
	ApplyAdjustments(buf, Adjustments{Saturation: -100})
	if buf[0] != buf[1] || buf[1] != buf[2] {
		t.Errorf("got %v, want a gray", buf[:3])
	}
	if buf[0] != 120 {
		t.Errorf("lightness should be kept: got %d, want 120", buf[0])
	}
}

func TestApplyAdjustments_AlphaUntouched(t *testing.T) {
	buf := []uint8{
		10, 20, 30, 0,
		40, 50, 60, 77,
		70, 80, 90, 255,
	}
	ApplyAdjustments(buf, Adjustments{Brightness: 30, Contrast: -20, Saturation: 60})
	for i, want := range []uint8{0, 77, 255} {
		if got := buf[i*4+3]; got != want {
			t.Errorf("alpha %d: got %d, want %d", i, got, want)
		}
	}
}

func TestAdjustments_With(t *testing.T) {
	a, err := Adjustments{}.With("contrast", 20)
	if err != nil {
		t.Fatal(err)
	}
	if a.Contrast != 20 {
		t.Errorf("Contrast: got %d, want 20", a.Contrast)
	}
	if _, err := a.With("gamma", 1); err == nil {
		t.Error("unknown adjustment should fail")
	}
	if _, err := a.With("saturation", 101); err == nil {
		t.Error("out of range value should fail")
	}
}
