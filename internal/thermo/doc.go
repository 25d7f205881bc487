// Package thermo holds the domain vocabulary shared by the control
// packages: the control [Mode], the actuator [Direction], and the tuning
// parameter group [Params] that the state machine and the cascade read and
// the tuning interface writes.
//
// Params values are treated as immutable once published; writers clone,
// modify, [Params.Validate] and swap.
package thermo
