// Package integrators advances first-order ODE systems by one step.
package integrators

// System returns dx/dt at x and t.
type System interface {
	Derive(x []float64, t float64) []float64
}

type Stepper interface {
	Step(sys System, x []float64, t, dt float64) []float64
}

// ByName returns "rk4" or "euler".
func ByName(name string) (Stepper, bool) {
	switch name {
	case "rk4", "":
		return NewRK4(), true
	case "euler":
		return NewEuler(), true
	}
	return nil, false
}
