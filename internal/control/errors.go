package control

import "errors"

var (
	ErrBadGain      = errors.New("control: gain must be finite and non-negative")
	ErrUnknownParam = errors.New("control: unknown parameter")
)
