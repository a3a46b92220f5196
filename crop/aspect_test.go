package crop

import (
	"math"
	"testing"
)

func TestReconcile(t *testing.T) {
	tests := []struct {
		name          string
		w, h          int
		requested     float64
		wantEffective float64
		wantInverted  bool
	}{
		{"landscape image, portrait print", 4000, 3000, 5.0 / 7, 7.0 / 5, true},
		{"portrait image, portrait print", 3000, 4000, 5.0 / 7, 5.0 / 7, false},
		{"portrait image, landscape print", 3000, 4000, 7.0 / 5, 5.0 / 7, true},
		{"landscape image, landscape print", 4000, 3000, 3.0 / 2, 3.0 / 2, false},
		{"square image counts as portrait", 1000, 1000, 5.0 / 7, 5.0 / 7, false},
		{"square print on landscape ties to the reciprocal", 4000, 3000, 1, 1, true},
		{"empty image", 0, 0, 5.0 / 7, 5.0 / 7, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.w, tt.h, tt.requested)
			if math.Abs(got.Effective-tt.wantEffective) > 1e-12 {
				t.Errorf("Effective: got %v, want %v", got.Effective, tt.wantEffective)
			}
			if got.Inverted != tt.wantInverted {
				t.Errorf("Inverted: got %v, want %v", got.Inverted, tt.wantInverted)
			}
			if got.Requested != tt.requested {
				t.Errorf("Requested: got %v, want %v", got.Requested, tt.requested)
			}
		})
	}
}

func TestReconcile_KeepsBetterFit(t *testing.T) {
	// A barely-landscape image and a barely-portrait print: both ratios fit
	// almost equally, the reciprocal still fits better.
	got := Reconcile(1010, 1000, 0.99)
	if !got.Inverted {
		t.Errorf("got %+v, want inverted", got)
	}
}

func TestAspectChoice_Toggle(t *testing.T) {
	c := Reconcile(4000, 3000, 5.0/7)
	back := c.Toggle()
	if back.Inverted || math.Abs(back.Effective-5.0/7) > 1e-12 {
		t.Errorf("first toggle: got %+v", back)
	}
	again := back.Toggle()
	if again != c {
		t.Errorf("second toggle: got %+v, want %+v", again, c)
	}
}

func TestOrientationOf(t *testing.T) {
	if OrientationOf(1.01) != Landscape {
		t.Error("1.01 should be landscape")
	}
	if OrientationOf(1) != Portrait {
		t.Error("square should be portrait")
	}
	if OrientationOf(0.5) != Portrait {
		t.Error("0.5 should be portrait")
	}
}
