package crop

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Presets are named pan positions in preview pixels.
var Presets = map[string]Offset{
	"center":       {X: 0, Y: 0},
	"top-left":     {X: -30, Y: -30},
	"top-right":    {X: 30, Y: -30},
	"bottom-left":  {X: -30, Y: 30},
	"bottom-right": {X: 30, Y: 30},
}

// PresetNames returns the preset names in a stable order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type SessionOptions struct {
	// Aspect is the requested width/height of the print.
	Aspect float64
	// Mobile selects the mobile preview viewport.
	Mobile bool
	// Preview overrides the preview size derived from the viewport.
	Preview Size
	// Zoom overrides the zoom range derived from the preview.
	Zoom ZoomRange
	// Debounce and HistoryDepth configure the recorder.
	Debounce     time.Duration
	HistoryDepth int
}

// Session is one open editor: a source, its reconciled aspect, live controls and history.
// All methods are safe for concurrent use.
type Session struct {
	ID string

	exporter *Exporter
	opts     SessionOptions

	mu         sync.Mutex
	source     SourceImage
	preview    Size
	zoom       ZoomRange
	aspect     AspectChoice
	live       EditState
	recorder   *Recorder
	generation uint64
	exporting  bool
}

// NewSession probes url through the exporter's loader and opens a session on it.
func NewSession(ctx context.Context, id, url string, exporter *Exporter, opts SessionOptions) (*Session, error) {
	if opts.Aspect <= 0 {
		return nil, newError(ReasonInvalidEditState, "session", fmt.Errorf("aspect %g must be positive", opts.Aspect))
	}
	src, err := Probe(ctx, exporter.Loader, url)
	if err != nil {
		return nil, err
	}
	s := &Session{ID: id, exporter: exporter, opts: opts}
	s.recorder = NewRecorder(InitialState(), RecorderConfig{
		Window: opts.Debounce,
		Depth:  opts.HistoryDepth,
	})
	s.loadLocked(src)
	return s, nil
}

// loadLocked resets everything derived from the source. The aspect is reconciled
// here and nowhere else, so manual toggles survive until the next load.
func (s *Session) loadLocked(src SourceImage) {
	s.source = src
	s.preview = s.opts.Preview
	if s.preview.Width <= 0 || s.preview.Height <= 0 {
		s.preview = PreviewFit(src.NaturalWidth, src.NaturalHeight, ViewportFor(s.opts.Mobile))
	}
	s.zoom = s.opts.Zoom
	if s.zoom.Min <= 0 || s.zoom.Max < s.zoom.Min {
		s.zoom = ZoomRangeFor(src.NaturalWidth, s.preview)
	}
	s.aspect = Reconcile(src.NaturalWidth, src.NaturalHeight, s.opts.Aspect)
	s.live = InitialState()
	s.recorder.Reset(s.live)
	s.generation++
}

// Reload replaces the source. Exports still running against the old source complete
// with ErrStaleExport.
func (s *Session) Reload(ctx context.Context, url string) error {
	src, err := Probe(ctx, s.exporter.Loader, url)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(src)
	return nil
}

func (s *Session) Source() SourceImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *Session) Aspect() AspectChoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aspect
}

// Live returns the controls as currently shown, including changes not yet in history.
func (s *Session) Live() EditState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

func (s *Session) History() History {
	return s.recorder.History()
}

func (s *Session) SetOffset(o Offset) EditState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = s.live.WithOffset(o)
	s.recorder.Propose(s.live)
	return s.live
}

// SetZoom clamps z into the session's zoom range.
func (s *Session) SetZoom(z float64) EditState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = s.live.WithZoom(s.zoom.Clamp(z))
	s.recorder.Propose(s.live)
	return s.live
}

// EditChange is a combined pan, zoom and adjustment change. Nil fields are left alone.
type EditChange struct {
	Offset      *Offset
	Zoom        *float64
	Adjustments map[string]int
}

// Edit applies ch as one history proposal. An invalid adjustment rejects the
// whole change and leaves the live state untouched.
func (s *Session) Edit(ch EditChange) (EditState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	adj := s.live.Adjustments
	for name, value := range ch.Adjustments {
		var err error
		if adj, err = adj.With(name, value); err != nil {
			return s.live, newError(ReasonInvalidEditState, "edit", err)
		}
	}
	next := s.live.WithAdjustments(adj)
	if ch.Offset != nil {
		next = next.WithOffset(*ch.Offset)
	}
	if ch.Zoom != nil {
		next = next.WithZoom(s.zoom.Clamp(*ch.Zoom))
	}
	s.live = next
	s.recorder.Propose(s.live)
	return s.live, nil
}

// Rotate turns by 90 degrees clockwise for a positive direction, counter-clockwise otherwise.
func (s *Session) Rotate(direction int) EditState {
	step := 90.0
	if direction < 0 {
		step = -90
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = s.live.WithRotation(s.live.Rotation + step)
	s.recorder.Commit(s.live)
	return s.live
}

func (s *Session) SetRotation(deg float64) (EditState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.live.WithRotation(deg)
	if err := next.Validate(); err != nil {
		return s.live, err
	}
	s.live = next
	s.recorder.Commit(s.live)
	return s.live, nil
}

func (s *Session) SetAdjustment(name string, value int) (EditState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	adj, err := s.live.Adjustments.With(name, value)
	if err != nil {
		return s.live, newError(ReasonInvalidEditState, "adjust", err)
	}
	s.live = s.live.WithAdjustments(adj)
	s.recorder.Propose(s.live)
	return s.live, nil
}

func (s *Session) ResetAdjustment(name string) (EditState, error) {
	return s.SetAdjustment(name, 0)
}

func (s *Session) ResetAdjustments() EditState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = s.live.WithAdjustments(Adjustments{})
	s.recorder.Commit(s.live)
	return s.live
}

func (s *Session) ApplyPreset(name string) (EditState, error) {
	o, ok := Presets[name]
	if !ok {
		return EditState{}, newError(ReasonInvalidEditState, "preset", fmt.Errorf("unknown preset %q", name))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = s.live.WithOffset(o)
	s.recorder.Commit(s.live)
	return s.live, nil
}

func (s *Session) Undo() EditState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = s.recorder.Undo()
	return s.live
}

func (s *Session) Redo() EditState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = s.recorder.Redo()
	return s.live
}

// ToggleAspect flips to the reciprocal aspect ratio.
func (s *Session) ToggleAspect() AspectChoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aspect = s.aspect.Toggle()
	return s.aspect
}

// Geometry plans the crop for the live state.
func (s *Session) Geometry() (CropGeometry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.geometryLocked()
}

func (s *Session) geometryLocked() (CropGeometry, error) {
	geo, err := Planner{Zoom: s.zoom}.Plan(s.source, s.preview, s.live, s.aspect.Effective)
	if err != nil {
		return CropGeometry{}, err
	}
	geo.Inverted = s.aspect.Inverted
	return geo, nil
}

// Export renders the live state. Only one export may run at a time per session.
func (s *Session) Export(ctx context.Context, quality float64) (*Blob, error) {
	s.mu.Lock()
	if s.exporting {
		s.mu.Unlock()
		return nil, newError(ReasonExportInFlight, "export", fmt.Errorf("session %s", s.ID))
	}
	geo, err := s.geometryLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.exporting = true
	src, live, gen := s.source, s.live, s.generation
	s.mu.Unlock()

	blob, err := s.exporter.Export(ctx, src, geo, live.Rotation, live.Adjustments, quality)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.exporting = false
	if gen != s.generation {
		return nil, newError(ReasonStaleExport, "export", fmt.Errorf("source of session %s changed", s.ID))
	}
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// SessionSnapshot is what the editor UI renders from.
type SessionSnapshot struct {
	ID            string        `json:"id"`
	Source        SourceImage   `json:"source"`
	Preview       Size          `json:"preview"`
	Zoom          ZoomRange     `json:"zoom_range"`
	Aspect        AspectChoice  `json:"aspect"`
	Live          EditState     `json:"live"`
	HistoryLen    int           `json:"history_len"`
	HistoryCursor int           `json:"history_cursor"`
	CanUndo       bool          `json:"can_undo"`
	CanRedo       bool          `json:"can_redo"`
	Geometry      *CropGeometry `json:"geometry,omitempty"`
	GeometryError string        `json:"geometry_error,omitempty"`
}

func (s *Session) Snapshot() SessionSnapshot {
	h := s.recorder.History()
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := SessionSnapshot{
		ID:            s.ID,
		Source:        s.source,
		Preview:       s.preview,
		Zoom:          s.zoom,
		Aspect:        s.aspect,
		Live:          s.live,
		HistoryLen:    h.Len(),
		HistoryCursor: h.Cursor(),
		CanUndo:       h.CanUndo(),
		CanRedo:       h.CanRedo(),
	}
	if geo, err := s.geometryLocked(); err != nil {
		snap.GeometryError = err.Error()
	} else {
		snap.Geometry = &geo
	}
	return snap
}

// Close stops the session's debounce timer.
func (s *Session) Close() {
	s.recorder.Close()
}
