package widget

import "errors"

var ErrNotFound = errors.New("widget not found")
var ErrValidation = errors.New("validation failed")

// ValidationError describes malformed input. errors.Is(err, ErrValidation) holds for it.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Msg
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
