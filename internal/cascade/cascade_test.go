package cascade_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/ptcbox/internal/cascade"
	"github.com/san-kum/ptcbox/internal/safety"
	"github.com/san-kum/ptcbox/internal/thermo"
)

var _ = Describe("Controller", func() {
	var (
		params *thermo.Params
		ctrl   *cascade.Controller
		events []safety.Event
		now    time.Time
	)

	step := func(mode thermo.Mode, box, ptc float64) cascade.Output {
		now = now.Add(100 * time.Millisecond)
		return ctrl.Step(cascade.Inputs{
			Mode:   mode,
			Box:    box,
			PTC:    ptc,
			Params: params,
			Dt:     0.1,
			Now:    now,
		})
	}

	BeforeEach(func() {
		params = thermo.DefaultParams()
		params.Target = 45
		params.Hysteresis = 2
		params.WarmingBias = 5
		params.HeatingBias = 25
		events = nil
		now = time.Unix(0, 0)
		mon := safety.NewMonitor(params.MaxSafeTemp, safety.WithCallback(func(ev safety.Event) {
			events = append(events, ev)
		}))
		ctrl = cascade.New(params, mon)
	})

	Context("heating far below target", func() {
		It("drives the PTC towards target plus heating bias", func() {
			out := step(thermo.Heating, 30, 60)
			Expect(out.Direction).To(Equal(thermo.Heat))
			Expect(out.DesiredPTC).To(BeNumerically("~", 70, 1e-9))
			Expect(out.Feedforward).To(BeNumerically("~", 0.64, 1e-9))
			Expect(out.Duty).To(BeNumerically(">", 0))
			Expect(out.Duty).To(BeNumerically("<", 1))
			Expect(out.Safety).To(Equal(safety.OK))
			Expect(events).To(BeEmpty())
		})

		It("never asks for less than target plus warming bias", func() {
			out := step(thermo.Heating, 60, 60)
			Expect(out.DesiredPTC).To(BeNumerically(">=", params.Target+params.WarmingBias))
		})

		It("caps the desired PTC temperature at the safety maximum", func() {
			params.Target = 110
			out := step(thermo.Heating, 50, 60)
			Expect(out.DesiredPTC).To(BeNumerically("<=", params.MaxSafeTemp))
		})
	})

	Context("safety interlock", func() {
		It("forces exactly zero duty at the maximum", func() {
			for i := 0; i < 20; i++ {
				step(thermo.Heating, 30, 60)
			}
			out := step(thermo.Heating, 30, 120)
			Expect(out.Duty).To(Equal(0.0))
			Expect(out.Heater).To(Equal(0.0))
			Expect(out.Safety).To(Equal(safety.Overheat))
			Expect(events).To(HaveLen(1))
			Expect(events[0].PTC).To(Equal(120.0))
		})

		It("reports every tripped cycle and recovers without a latch", func() {
			step(thermo.Heating, 30, 130)
			step(thermo.Heating, 30, 125)
			Expect(events).To(HaveLen(2))
			Expect(ctrl.Monitor().Trips()).To(Equal(uint64(2)))

			out := step(thermo.Heating, 30, 60)
			Expect(out.Safety).To(Equal(safety.OK))
			Expect(out.Duty).To(BeNumerically(">", 0))
		})

		It("treats the sensor sentinel as a fault and keeps the integrators clean", func() {
			before := ctrl.Loops().Inner.Integral
			out := step(thermo.Warming, 44, -100)
			Expect(out.Duty).To(Equal(0.0))
			Expect(out.Safety).To(Equal(safety.Fault))
			Expect(ctrl.Loops().Inner.Integral).To(Equal(before))
		})
	})

	Context("cooling", func() {
		It("drives the fan inside its bounds and keeps the heater off", func() {
			var out cascade.Output
			for i := 0; i < 200; i++ {
				out = step(thermo.Cooling, 55, 40)
				Expect(out.Fan).To(BeNumerically(">=", params.FanMin))
				Expect(out.Fan).To(BeNumerically("<=", params.FanMax))
			}
			Expect(out.Direction).To(Equal(thermo.Cool))
			Expect(out.Heater).To(Equal(0.0))
			Expect(out.Duty).To(Equal(out.Fan))
			Expect(out.Fan).To(BeNumerically("~", params.FanMax, 1e-9))
		})

		It("smooths the fan command", func() {
			out := step(thermo.Cooling, 55, 40)
			Expect(out.Fan).To(BeNumerically("~", params.FanSmoothAlpha, 1e-9))
		})

		It("ignores the derivative gain", func() {
			params.Cool.Kd = 100
			step(thermo.Cooling, 55, 40)
			Expect(ctrl.Loops().Cool.Kd).To(Equal(0.0))
		})
	})

	Context("idle", func() {
		It("outputs zero on the heater line", func() {
			out := step(thermo.Idle, 45, 60)
			Expect(out.Duty).To(Equal(0.0))
			Expect(out.Direction).To(Equal(thermo.Heat))
		})
	})

	Context("loop ownership", func() {
		It("decays inactive integrators instead of zeroing them", func() {
			for i := 0; i < 10; i++ {
				step(thermo.Heating, 30, 60)
			}
			before := ctrl.Loops().Outer.Integral
			Expect(before).NotTo(BeZero())

			step(thermo.Cooling, 50, 40)
			Expect(ctrl.Loops().Outer.Integral).To(BeNumerically("~", before*params.InactiveDecay, 1e-9))
		})

		It("resets only the loops of the entered mode", func() {
			step(thermo.Heating, 30, 60)
			step(thermo.Cooling, 50, 40)
			ctrl.ResetFor(thermo.Heating)
			loops := ctrl.Loops()
			Expect(loops.Outer.Integral).To(BeZero())
			Expect(loops.Inner.Integral).To(BeZero())
			Expect(loops.Cool.Integral).NotTo(BeZero())

			ctrl.ResetAll()
			ctrl.ResetAll()
			loops = ctrl.Loops()
			Expect(loops.Cool.Integral).To(BeZero())
			Expect(loops.Cool.PrevError).To(BeZero())
			Expect(loops.Fan).To(BeZero())
		})

		It("follows gain changes in the parameter snapshot", func() {
			next := params.Clone()
			next.Inner.Kp = 0.05
			params = next
			step(thermo.Heating, 30, 60)
			Expect(ctrl.Loops().Inner.Kp).To(Equal(0.05))
		})
	})
})

var _ = DescribeTable("DynamicBias",
	func(outerErr, want float64) {
		Expect(cascade.DynamicBias(outerErr, 2, 10, 25)).To(BeNumerically("~", want, 1e-9))
	},
	Entry("at the top of the band", -2.0, 10.0),
	Entry("at target", 0.0, 17.5),
	Entry("at the bottom of the band", 2.0, 25.0),
	Entry("far below target", 15.0, 25.0),
	Entry("far above target", -8.0, 25.0),
)
