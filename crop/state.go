package crop

import (
	"fmt"
	"math"
)

// Offset is the pan of the source relative to the crop window centre, in preview pixels.
type Offset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EditState is one immutable snapshot of the editor controls.
type EditState struct {
	Offset      Offset      `json:"offset"`
	Zoom        float64     `json:"zoom"`
	Rotation    float64     `json:"rotation"`
	Adjustments Adjustments `json:"adjustments"`
}

// InitialState is the state every session starts from.
func InitialState() EditState {
	return EditState{Zoom: 1}
}

// NewEditState validates and returns a state.
func NewEditState(offset Offset, zoom, rotation float64, adj Adjustments) (EditState, error) {
	s := EditState{Offset: offset, Zoom: zoom, Rotation: rotation, Adjustments: adj}
	if err := s.Validate(); err != nil {
		return EditState{}, err
	}
	return s, nil
}

func (s EditState) Validate() error {
	for name, v := range map[string]float64{
		"offset.x": s.Offset.X,
		"offset.y": s.Offset.Y,
		"zoom":     s.Zoom,
		"rotation": s.Rotation,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return newError(ReasonInvalidEditState, "validate", fmt.Errorf("%s is not finite", name))
		}
	}
	if s.Zoom <= 0 {
		return newError(ReasonInvalidEditState, "validate", fmt.Errorf("zoom %g must be positive", s.Zoom))
	}
	if err := s.Adjustments.Validate(); err != nil {
		return newError(ReasonInvalidEditState, "validate", err)
	}
	return nil
}

func (s EditState) WithOffset(o Offset) EditState {
	s.Offset = o
	return s
}

func (s EditState) WithZoom(z float64) EditState {
	s.Zoom = z
	return s
}

func (s EditState) WithRotation(deg float64) EditState {
	s.Rotation = deg
	return s
}

func (s EditState) WithAdjustments(a Adjustments) EditState {
	s.Adjustments = a
	return s
}
