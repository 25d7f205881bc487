package sensor

import "math"

const (
	kelvinOffset = 273.15
	t25Kelvin    = 298.15

	// Sentinel is reported for a disconnected or shorted thermistor. It sits
	// far below any physical reading so threshold comparisons fail toward
	// "needs heating"; the safety monitor treats it as no valid reading.
	Sentinel = -100.0

	// validFloor is the lowest reading accepted as a real temperature.
	validFloor = -50.0
)

// NTC converts raw ADC codes from a thermistor voltage divider. The
// thermistor sits on the low side: V = Vref * R / (Rseries + R).
type NTC struct {
	Vref       float64 `yaml:"vref"`
	Resolution float64 `yaml:"resolution"`
	MaxCode    uint32  `yaml:"max_code"`
	Rseries    float64 `yaml:"r_series"`
	R25        float64 `yaml:"r25"`
	Beta       float64 `yaml:"beta"`
}

func DefaultNTC() NTC {
	return NTC{
		Vref:       3.3,
		Resolution: 65536,
		MaxCode:    65535,
		Rseries:    10000,
		R25:        100000,
		Beta:       3950,
	}
}

// Temperature returns degrees Celsius for an ADC code, or Sentinel when the
// code is at full scale or zero.
func (n NTC) Temperature(code uint32) float64 {
	if code >= n.MaxCode || code == 0 {
		return Sentinel
	}
	v := float64(code) * n.Vref / n.Resolution
	if v >= n.Vref {
		return Sentinel
	}
	r := n.Rseries * v / (n.Vref - v)
	lnR := math.Log(r / n.R25)
	tk := 1.0 / (1.0/t25Kelvin + lnR/n.Beta)
	return tk - kelvinOffset
}

// Code is the inverse of Temperature, clamped to [1, MaxCode-1].
func (n NTC) Code(tempC float64) uint32 {
	tk := tempC + kelvinOffset
	if tk <= 0 {
		return n.MaxCode
	}
	r := n.R25 * math.Exp(n.Beta*(1.0/tk-1.0/t25Kelvin))
	v := n.Vref * r / (n.Rseries + r)
	code := math.Round(v * n.Resolution / n.Vref)
	if code < 1 {
		return 1
	}
	if code > float64(n.MaxCode-1) {
		return n.MaxCode - 1
	}
	return uint32(code)
}

// Valid reports whether t is a usable reading rather than a fault sentinel.
func Valid(t float64) bool {
	return !math.IsNaN(t) && t > validFloor
}
