package crop

import (
	"errors"
	"fmt"
)

// Reason tags a failed engine operation so callers can react without string matching.
type Reason string

const (
	ReasonSourceLoad          Reason = "SourceLoadError"
	ReasonInvalidCropGeometry Reason = "InvalidCropGeometry"
	ReasonEncode              Reason = "EncodeError"
	ReasonInvalidQuality      Reason = "InvalidQuality"
	ReasonInvalidEditState    Reason = "InvalidEditState"
	ReasonExportInFlight      Reason = "ExportInFlight"
	ReasonStaleExport         Reason = "StaleExport"
)

var (
	ErrSourceLoad          = &Error{Reason: ReasonSourceLoad}
	ErrInvalidCropGeometry = &Error{Reason: ReasonInvalidCropGeometry}
	ErrEncode              = &Error{Reason: ReasonEncode}
	ErrInvalidQuality      = &Error{Reason: ReasonInvalidQuality}
	ErrInvalidEditState    = &Error{Reason: ReasonInvalidEditState}
	ErrExportInFlight      = &Error{Reason: ReasonExportInFlight}
	ErrStaleExport         = &Error{Reason: ReasonStaleExport}
)

// Error is the single failure value produced by the engine.
// errors.Is matches it against the sentinel carrying the same Reason.
type Error struct {
	Reason Reason
	Op     string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return string(e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Reason == e.Reason && t.Op == "" && t.Err == nil
}

func newError(reason Reason, op string, err error) *Error {
	return &Error{Reason: reason, Op: op, Err: err}
}

// ReasonOf returns the tag of the first engine error in err's chain, or "" if there is none.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
