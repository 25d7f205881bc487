package thermo

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParam = errors.New("thermo: invalid parameter")
	ErrUnknownMode  = errors.New("thermo: unknown mode")
	ErrUnknownLoop  = errors.New("thermo: unknown loop")
	ErrUnknownTable = errors.New("thermo: unknown table")
)

// ParamError names the parameter that failed validation.
type ParamError struct {
	Name   string
	Value  float64
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s=%g: %s", e.Name, e.Value, e.Reason)
}

func (e *ParamError) Unwrap() error {
	return ErrInvalidParam
}
