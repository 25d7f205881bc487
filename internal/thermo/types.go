package thermo

import (
	"fmt"
	"strings"
)

type Mode int32

const (
	Idle Mode = iota
	Heating
	Warming
	Cooling
)

func (m Mode) String() string {
	switch m {
	case Heating:
		return "HEATING"
	case Warming:
		return "WARMING"
	case Cooling:
		return "COOLING"
	case Idle:
		return "IDLE"
	default:
		return fmt.Sprintf("MODE(%d)", int32(m))
	}
}

func (m Mode) Valid() bool { return m >= Idle && m <= Cooling }

// Direction returns the actuator pin state the mode drives.
func (m Mode) Direction() Direction {
	if m == Cooling {
		return Cool
	}
	return Heat
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "heating", "heat":
		return Heating, nil
	case "warming", "warm":
		return Warming, nil
	case "cooling", "cool":
		return Cooling, nil
	case "idle":
		return Idle, nil
	}
	return Idle, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Direction selects which device the shared PWM line drives.
type Direction int32

const (
	Heat Direction = iota
	Cool
)

func (d Direction) String() string {
	if d == Cool {
		return "COOL"
	}
	return "HEAT"
}
