package control

// LowPass is a one-pole filter: y[t] = y[t-1] + Alpha*(x[t] - y[t-1]).
// Alpha of 1 passes the input through.
type LowPass struct {
	Alpha float64
	y     float64
}

func NewLowPass(alpha float64) *LowPass {
	return &LowPass{Alpha: alpha}
}

func (l *LowPass) Step(x float64) float64 {
	a := clamp(l.Alpha, 0, 1)
	l.y += a * (x - l.y)
	return l.y
}

func (l *LowPass) Value() float64 { return l.y }

func (l *LowPass) Reset(v float64) { l.y = v }
