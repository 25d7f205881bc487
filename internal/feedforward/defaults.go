package feedforward

const (
	DutyTable    = "duty"
	BiasTable    = "bias"
	WarmingTable = "warming"
)

// DefaultDuty maps a PTC operating temperature to the base heater duty that
// holds it in still air.
func DefaultDuty() *Table {
	return New(DutyTable, []Point{
		{20, 0.18}, {25, 0.23}, {30, 0.27}, {40, 0.36}, {50, 0.46},
		{60, 0.55}, {70, 0.64}, {80, 0.73}, {90, 0.82}, {100, 0.91},
	})
}

// DefaultBias maps a target box temperature to how far above it the PTC has
// to run to hold the box there.
func DefaultBias() *Table {
	return New(BiasTable, []Point{
		{25, 8}, {30, 10}, {40, 14}, {50, 18}, {60, 22}, {70, 25},
	})
}

// DefaultWarming maps a target box temperature to the warming threshold
// below the hysteresis band at which full heating kicks in.
func DefaultWarming() *Table {
	return New(WarmingTable, []Point{
		{25, 3.0}, {30, 2.5}, {40, 1.0}, {55, 0.0}, {70, -1.0},
	})
}
