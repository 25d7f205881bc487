package integrators

import (
	"math"
	"testing"
)

// decay is dx/dt = -x/tau for every component.
type decay struct{ tau float64 }

func (d decay) Derive(x []float64, t float64) []float64 {
	dx := make([]float64, len(x))
	for i := range x {
		dx[i] = -x[i] / d.tau
	}
	return dx
}

func TestRK4Accuracy(t *testing.T) {
	sys := decay{tau: 50}
	integ := NewRK4()

	x := []float64{80, 20}
	dt := 0.5
	steps := 200
	for i := 0; i < steps; i++ {
		x = integ.Step(sys, x, float64(i)*dt, dt)
	}

	want := math.Exp(-float64(steps) * dt / sys.tau)
	if math.Abs(x[0]-80*want) > 1e-6 {
		t.Errorf("x0 error too large: got %.8f, expected %.8f", x[0], 80*want)
	}
	if math.Abs(x[1]-20*want) > 1e-6 {
		t.Errorf("x1 error too large: got %.8f, expected %.8f", x[1], 20*want)
	}
}

func TestEulerConverges(t *testing.T) {
	sys := decay{tau: 50}
	integ := NewEuler()

	x := []float64{1}
	dt := 0.01
	for i := 0; i < 1000; i++ {
		x = integ.Step(sys, x, float64(i)*dt, dt)
	}
	want := math.Exp(-10.0 / sys.tau)
	if math.Abs(x[0]-want) > 1e-4 {
		t.Errorf("euler error too large: got %.6f, expected %.6f", x[0], want)
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"rk4", "euler", ""} {
		if _, ok := ByName(name); !ok {
			t.Errorf("ByName(%q) not found", name)
		}
	}
	if _, ok := ByName("verlet"); ok {
		t.Error("ByName(verlet) should not be found")
	}
}
