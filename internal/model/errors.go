package model

import "errors"

var (
	// ErrLoad wraps every failure of Load.
	ErrLoad = errors.New("model: load failed")
	// ErrInvalidInput marks arguments the model cannot accept.
	ErrInvalidInput = errors.New("model: invalid input")
	// ErrUnsupported is returned when the model has no backend for the
	// requested modality.
	ErrUnsupported = errors.New("model: operation not supported by this model")
)
