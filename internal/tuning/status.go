package tuning

// Status is the flat record returned by get_status.
type Status struct {
	CurrentTemperature float64 `json:"current_temperature"`
	TargetTemperature  float64 `json:"target_temperature"`
	CurrentHumidity    float64 `json:"current_humidity"`
	EnvTemperature     float64 `json:"env_temperature"`
	PTCTemperature     float64 `json:"ptc_temperature"`
	PTCState           string  `json:"ptc_state"`
	ControlState       string  `json:"control_state"`
	Forced             bool    `json:"forced"`
	Direction          string  `json:"direction"`
	Duty               float64 `json:"duty"`
	FanSpeed           float64 `json:"fan_speed"`
	FanSpeedPercent    float64 `json:"fan_speed_percent"`
	FeedforwardSpeed   float64 `json:"feedforward_speed"`
	PIDOutput          float64 `json:"pid_output"`
	DesiredPTC         float64 `json:"desired_ptc"`
	DynamicBias        float64 `json:"dynamic_bias"`

	PIDKp         float64 `json:"pid_kp"`
	PIDKi         float64 `json:"pid_ki"`
	PIDKd         float64 `json:"pid_kd"`
	IntegralError float64 `json:"integral_error"`
	PreviousError float64 `json:"previous_error"`

	OuterKp       float64 `json:"outer_kp"`
	OuterKi       float64 `json:"outer_ki"`
	OuterKd       float64 `json:"outer_kd"`
	OuterIntegral float64 `json:"outer_integral"`

	CoolKp       float64 `json:"cool_kp"`
	CoolKi       float64 `json:"cool_ki"`
	CoolIntegral float64 `json:"cool_integral"`

	WarmingThreshold float64 `json:"warming_threshold"`
	HysteresisBand   float64 `json:"hysteresis_band"`
	WarmingBias      float64 `json:"warming_bias"`
	HeatingBias      float64 `json:"heating_bias"`
	FanMin           float64 `json:"fan_min"`
	FanMax           float64 `json:"fan_max"`
	FanSmoothAlpha   float64 `json:"fan_smooth_alpha"`

	Safety        string  `json:"safety"`
	OverheatTrips uint64  `json:"overheat_trips"`
	MaxSafeTemp   float64 `json:"max_safe_temp"`
}

// Status assembles the record from the shared state. Values may be one
// control cycle apart.
func (s *Service) Status() Status {
	snap := s.state.Snapshot()
	p, out, loops := snap.Params, snap.Output, snap.Loops

	ptcState := "OFF"
	if out.Heater > 0 {
		ptcState = "ON"
	}

	st := Status{
		CurrentTemperature: snap.Readings.Box,
		TargetTemperature:  p.Target,
		CurrentHumidity:    snap.Readings.Humidity,
		EnvTemperature:     snap.Readings.Ambient,
		PTCTemperature:     snap.Readings.PTC,
		PTCState:           ptcState,
		ControlState:       snap.Mode.Mode.String(),
		Forced:             s.machine.Forced(),
		Direction:          out.Direction.String(),
		Duty:               out.Duty,
		FanSpeed:           out.Fan,
		FanSpeedPercent:    out.Fan * 100,
		FeedforwardSpeed:   out.Feedforward,
		PIDOutput:          out.InnerOut,
		DesiredPTC:         out.DesiredPTC,
		DynamicBias:        out.DynamicBias,

		PIDKp:         p.Inner.Kp,
		PIDKi:         p.Inner.Ki,
		PIDKd:         p.Inner.Kd,
		IntegralError: loops.Inner.Integral,
		PreviousError: loops.Inner.PrevError,

		OuterKp:       p.Outer.Kp,
		OuterKi:       p.Outer.Ki,
		OuterKd:       p.Outer.Kd,
		OuterIntegral: loops.Outer.Integral,

		CoolKp:       p.Cool.Kp,
		CoolKi:       p.Cool.Ki,
		CoolIntegral: loops.Cool.Integral,

		WarmingThreshold: p.EffectiveWarmingThreshold(),
		HysteresisBand:   p.Hysteresis,
		WarmingBias:      p.WarmingBias,
		HeatingBias:      p.HeatingBias,
		FanMin:           p.FanMin,
		FanMax:           p.FanMax,
		FanSmoothAlpha:   p.FanSmoothAlpha,

		Safety:      out.Safety.String(),
		MaxSafeTemp: p.MaxSafeTemp,
	}
	if s.monitor != nil {
		st.OverheatTrips = s.monitor.Trips()
		st.MaxSafeTemp = s.monitor.MaxTemp()
	}
	return st
}
