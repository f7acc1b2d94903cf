package models

import "errors"

var (
	// ErrDataUnavailable means the forecast is missing or unparseable. Fatal for a cycle.
	ErrDataUnavailable = errors.New("forecast data unavailable")
	// ErrFetchFailed is a network error or timeout on any source.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrImageUnavailable means no usable image was obtained from a source.
	ErrImageUnavailable = errors.New("image unavailable")
	// ErrNoSignalDetected means the diagram contained no marked line.
	ErrNoSignalDetected = errors.New("no signal detected")
	// ErrInsufficientFactorData means a scoring factor had no inputs.
	ErrInsufficientFactorData = errors.New("insufficient factor data")
)
