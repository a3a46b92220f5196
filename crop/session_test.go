package crop

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func newTestSession(t *testing.T, loader SourceLoader, url string) *Session {
	t.Helper()
	s, err := NewSession(context.Background(), "s1", url, NewExporter(loader), SessionOptions{
		Aspect:   5.0 / 7,
		Debounce: time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSession_ReconcilesOnLoad(t *testing.T) {
	s := newTestSession(t, memLoader{"land.png": noise(80, 60)}, "land.png")

	a := s.Aspect()
	if !a.Inverted || math.Abs(a.Effective-7.0/5) > 1e-12 {
		t.Fatalf("got %+v, want inverted 7/5", a)
	}
	if src := s.Source(); src.NaturalWidth != 80 || src.NaturalHeight != 60 {
		t.Errorf("Source: got %+v", src)
	}
	geo, err := s.Geometry()
	if err != nil {
		t.Fatal(err)
	}
	if want := (Rect{Width: 80, Height: 57, Y: 2}); !geo.Inverted || geo.PixelRect != want {
		t.Errorf("Geometry: got %s inverted=%v", geo.PixelRect, geo.Inverted)
	}
}

func TestSession_ToggleSurvivesUntilReload(t *testing.T) {
	loader := memLoader{"a.png": noise(80, 60), "b.png": noise(90, 60)}
	s := newTestSession(t, loader, "a.png")

	if got := s.ToggleAspect(); got.Inverted {
		t.Fatalf("toggle: got %+v, want not inverted", got)
	}
	s.SetOffset(Offset{X: 3})
	s.Rotate(1)
	if s.Aspect().Inverted {
		t.Error("edits must not re-run reconciliation")
	}

	if err := s.Reload(context.Background(), "b.png"); err != nil {
		t.Fatal(err)
	}
	if !s.Aspect().Inverted {
		t.Error("reload should reconcile again")
	}
	if s.Live() != InitialState() {
		t.Errorf("reload should reset the controls, got %+v", s.Live())
	}
	if s.History().Len() != 1 {
		t.Errorf("reload should reset history, Len=%d", s.History().Len())
	}
}

func TestSession_EditsAndHistory(t *testing.T) {
	s := newTestSession(t, memLoader{"a.png": noise(80, 60)}, "a.png")

	s.SetOffset(Offset{X: 1})
	s.SetOffset(Offset{X: 2})
	if s.History().Len() != 1 {
		t.Fatalf("offsets should still be pending, Len=%d", s.History().Len())
	}
	if got := s.SetZoom(99); got.Zoom != s.Snapshot().Zoom.Max {
		t.Errorf("zoom not clamped: %v", got.Zoom)
	}

	st := s.Rotate(-1)
	if st.Rotation != -90 || st.Offset.X != 2 {
		t.Errorf("Rotate: got %+v", st)
	}
	if s.History().Len() != 2 {
		t.Errorf("rotation should commit at once, Len=%d", s.History().Len())
	}

	if _, err := s.ApplyPreset("top-left"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ApplyPreset("middle"); !errors.Is(err, ErrInvalidEditState) {
		t.Errorf("unknown preset: got %v", err)
	}
	if s.Live().Offset != (Offset{X: -30, Y: -30}) {
		t.Errorf("preset offset: got %+v", s.Live().Offset)
	}

	undone := s.Undo()
	if undone.Offset.X != 2 || undone.Rotation != -90 {
		t.Errorf("Undo: got %+v", undone)
	}
	if s.Live() != undone {
		t.Error("Live should follow undo")
	}
	if redone := s.Redo(); redone.Offset.X != -30 {
		t.Errorf("Redo: got %+v", redone)
	}
}

func TestSession_Adjustments(t *testing.T) {
	s := newTestSession(t, memLoader{"a.png": noise(20, 20)}, "a.png")

	if _, err := s.SetAdjustment("brightness", 40); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetAdjustment("brightness", 140); !errors.Is(err, ErrInvalidEditState) {
		t.Errorf("got %v, want InvalidEditState", err)
	}
	if s.Live().Adjustments.Brightness != 40 {
		t.Errorf("rejected value must not apply, got %d", s.Live().Adjustments.Brightness)
	}
	if st, _ := s.ResetAdjustment("brightness"); st.Adjustments.Brightness != 0 {
		t.Error("ResetAdjustment did not reset")
	}
	s.SetAdjustment("contrast", 10)
	s.SetAdjustment("saturation", -10)
	if st := s.ResetAdjustments(); !st.Adjustments.IsZero() {
		t.Errorf("ResetAdjustments: got %+v", st.Adjustments)
	}
}

func TestSession_EditIsAllOrNothing(t *testing.T) {
	s := newTestSession(t, memLoader{"a.png": noise(80, 60)}, "a.png")
	before := s.Live()

	zoom := 2.0
	_, err := s.Edit(EditChange{
		Offset:      &Offset{X: 25},
		Zoom:        &zoom,
		Adjustments: map[string]int{"brightness": 10, "contrast": 500},
	})
	if !errors.Is(err, ErrInvalidEditState) {
		t.Fatalf("got %v, want InvalidEditState", err)
	}
	if s.Live() != before {
		t.Errorf("rejected edit changed live state: got %+v, want %+v", s.Live(), before)
	}
	if s.recorder.Pending() {
		t.Error("rejected edit left a pending proposal")
	}

	st, err := s.Edit(EditChange{
		Offset:      &Offset{X: 25},
		Zoom:        &zoom,
		Adjustments: map[string]int{"brightness": 10, "contrast": 20},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := Adjustments{Brightness: 10, Contrast: 20}
	if st.Offset.X != 25 || st.Zoom != 2 || st.Adjustments != want {
		t.Errorf("got %+v", st)
	}
	if !s.recorder.Pending() {
		t.Error("edit should be proposed to history")
	}
}

func TestSession_ExportSingleFlightAndStale(t *testing.T) {
	loader := newGateLoader(memLoader{"a.png": noise(40, 30), "b.png": noise(30, 40)}, 2)
	s := newTestSession(t, loader, "a.png")

	done := make(chan error, 1)
	go func() {
		_, err := s.Export(context.Background(), 0.9)
		done <- err
	}()
	<-loader.started

	if _, err := s.Export(context.Background(), 0.9); !errors.Is(err, ErrExportInFlight) {
		t.Errorf("second export: got %v, want ExportInFlight", err)
	}
	if err := s.Reload(context.Background(), "b.png"); err != nil {
		t.Fatal(err)
	}
	close(loader.release)

	select {
	case err := <-done:
		if !errors.Is(err, ErrStaleExport) {
			t.Errorf("first export: got %v, want StaleExport", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("export never finished")
	}

	blob, err := s.Export(context.Background(), 0.9)
	if err != nil {
		t.Fatal(err)
	}
	geo, _ := s.Geometry()
	if blob.Width != geo.PixelRect.Width || blob.Height != geo.PixelRect.Height {
		t.Errorf("blob %dx%d, geometry %s", blob.Width, blob.Height, geo.PixelRect)
	}
}

func TestSession_ExportInvalidGeometry(t *testing.T) {
	s := newTestSession(t, memLoader{"a.png": noise(1, 1)}, "a.png")
	s.SetZoom(3)
	if _, err := s.Export(context.Background(), 0.9); !errors.Is(err, ErrInvalidCropGeometry) {
		t.Errorf("got %v, want InvalidCropGeometry", err)
	}
}

func TestNewSession_Errors(t *testing.T) {
	e := NewExporter(memLoader{})
	if _, err := NewSession(context.Background(), "x", "a.png", e, SessionOptions{}); !errors.Is(err, ErrInvalidEditState) {
		t.Errorf("zero aspect: got %v", err)
	}
	if _, err := NewSession(context.Background(), "x", "a.png", e, SessionOptions{Aspect: 1}); !errors.Is(err, ErrSourceLoad) {
		t.Errorf("missing source: got %v", err)
	}
}
