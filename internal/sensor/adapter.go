package sensor

import (
	"errors"
	"io"
	"log/slog"
)

var ErrNoPort = errors.New("sensor: port not configured")

// ADC returns a raw sample from the PTC thermistor channel.
type ADC interface {
	ReadADC() (uint32, error)
}

type Thermometer interface {
	ReadTemperature() (float64, error)
}

type Hygrometer interface {
	ReadHumidity() (float64, error)
}

// Sample is one slow-cycle read of the discrete sensors. A field is only
// meaningful when its ok flag is set.
type Sample struct {
	Box        float64
	BoxOK      bool
	Ambient    float64
	AmbientOK  bool
	Humidity   float64
	HumidityOK bool
}

// Adapter wraps the sensor ports. Any port may be nil.
type Adapter struct {
	ntc      NTC
	adc      ADC
	box      Thermometer
	ambient  Thermometer
	humidity Hygrometer
	lg       *slog.Logger
}

type Ports struct {
	ADC      ADC
	Box      Thermometer
	Ambient  Thermometer
	Humidity Hygrometer
}

func NewAdapter(ntc NTC, ports Ports, lg *slog.Logger) *Adapter {
	if lg == nil {
		lg = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Adapter{
		ntc:      ntc,
		adc:      ports.ADC,
		box:      ports.Box,
		ambient:  ports.Ambient,
		humidity: ports.Humidity,
		lg:       lg,
	}
}

func (a *Adapter) NTC() NTC { return a.ntc }

// PTC reads the ADC and converts it. A port error is returned as is; a
// disconnected thermistor is not an error and yields Sentinel.
func (a *Adapter) PTC() (float64, error) {
	if a.adc == nil {
		return 0, ErrNoPort
	}
	code, err := a.adc.ReadADC()
	if err != nil {
		return 0, err
	}
	return a.ntc.Temperature(code), nil
}

// Sample reads the box, ambient and humidity ports. Failures are logged and
// leave the field unset so the caller keeps its previous value.
func (a *Adapter) Sample() Sample {
	var s Sample
	if a.box != nil {
		if v, err := a.box.ReadTemperature(); err != nil {
			a.lg.Warn("box temperature read failed", "error", err)
		} else {
			s.Box, s.BoxOK = v, true
		}
	}
	if a.ambient != nil {
		if v, err := a.ambient.ReadTemperature(); err != nil {
			a.lg.Warn("ambient temperature read failed", "error", err)
		} else {
			s.Ambient, s.AmbientOK = v, true
		}
	}
	if a.humidity != nil {
		if v, err := a.humidity.ReadHumidity(); err != nil {
			a.lg.Warn("humidity read failed", "error", err)
		} else {
			s.Humidity, s.HumidityOK = v, true
		}
	}
	return s
}
