package statemachine_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/ptcbox/internal/statemachine"
	"github.com/san-kum/ptcbox/internal/thermo"
)

func staticParams() *thermo.Params {
	p := thermo.DefaultParams()
	p.Target = 40
	p.Hysteresis = 2
	p.WarmingThreshold = 3
	p.WarmingFromTable = false
	return p
}

var _ = Describe("Evaluate", func() {
	var p *thermo.Params

	BeforeEach(func() { p = staticParams() })

	It("sweeps 30 to 50 through heating, warming and cooling", func() {
		var modes []thermo.Mode
		for box := 30.0; box <= 50.0001; box += 0.1 {
			mode := statemachine.Evaluate(box, p)
			if len(modes) == 0 || modes[len(modes)-1] != mode {
				modes = append(modes, mode)
			}
			switch {
			case box < 34.999:
				Expect(mode).To(Equal(thermo.Heating), "box=%.2f", box)
			case box > 35.001 && box < 41.999:
				Expect(mode).To(Equal(thermo.Warming), "box=%.2f", box)
			case box > 42.001:
				Expect(mode).To(Equal(thermo.Cooling), "box=%.2f", box)
			}
		}
		Expect(modes).To(Equal([]thermo.Mode{thermo.Heating, thermo.Warming, thermo.Cooling}))
	})

	It("keeps warming exactly on the boundaries", func() {
		Expect(statemachine.Evaluate(35, p)).To(Equal(thermo.Warming))
		Expect(statemachine.Evaluate(42, p)).To(Equal(thermo.Warming))
	})

	It("uses the warming table when enabled", func() {
		p.WarmingFromTable = true
		// the default warming table gives 1.0 at 40
		Expect(statemachine.BoundsFor(p).Heat).To(BeNumerically("~", 37, 1e-9))
		Expect(statemachine.Evaluate(36.5, p)).To(Equal(thermo.Heating))
	})

	It("enters idle inside the idle band", func() {
		p.IdleBand = 0.5
		Expect(statemachine.Evaluate(40.2, p)).To(Equal(thermo.Idle))
		Expect(statemachine.Evaluate(40.6, p)).To(Equal(thermo.Warming))
	})
})

var _ = Describe("Machine", func() {
	var (
		p    *thermo.Params
		m    *statemachine.Machine
		seen []statemachine.Transition
		now  time.Time
	)

	BeforeEach(func() {
		p = staticParams()
		seen = nil
		now = time.Unix(100, 0)
		m = statemachine.New(thermo.Warming, statemachine.OnTransition(func(tr statemachine.Transition) {
			seen = append(seen, tr)
		}))
	})

	It("does not chatter for readings wobbling inside the hold band", func() {
		for i := 0; i < 50; i++ {
			box := 38.0 + 0.05
			if i%2 == 0 {
				box = 38.0 - 0.05
			}
			_, changed := m.Step(box, true, p, now)
			Expect(changed).To(BeFalse())
		}
		for i := 0; i < 50; i++ {
			box := 41.95
			if i%2 == 0 {
				box = 42.0
			}
			_, changed := m.Step(box, true, p, now)
			Expect(changed).To(BeFalse())
		}
		Expect(seen).To(BeEmpty())
	})

	It("reports each transition once", func() {
		tr, changed := m.Step(30, true, p, now)
		Expect(changed).To(BeTrue())
		Expect(tr.From).To(Equal(thermo.Warming))
		Expect(tr.To).To(Equal(thermo.Heating))
		Expect(tr.Forced).To(BeFalse())

		_, changed = m.Step(31, true, p, now)
		Expect(changed).To(BeFalse())
		Expect(seen).To(HaveLen(1))
	})

	It("skips cycles with a failed reading", func() {
		_, changed := m.Step(10, false, p, now)
		Expect(changed).To(BeFalse())
		Expect(m.Mode()).To(Equal(thermo.Warming))
	})

	It("pins a forced mode until released", func() {
		tr, changed, err := m.Force(thermo.Cooling, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
		Expect(tr.Forced).To(BeTrue())
		Expect(m.Forced()).To(BeTrue())

		_, changed = m.Step(30, true, p, now)
		Expect(changed).To(BeFalse())
		Expect(m.Mode()).To(Equal(thermo.Cooling))

		m.Release()
		tr, changed = m.Step(30, true, p, now)
		Expect(changed).To(BeTrue())
		Expect(tr.To).To(Equal(thermo.Heating))
	})

	It("pins the current mode without a transition", func() {
		_, changed, err := m.Force(thermo.Warming, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeFalse())
		Expect(m.Forced()).To(BeTrue())
		Expect(seen).To(BeEmpty())
	})

	It("restarts the current mode with a forced transition", func() {
		tr, err := m.Restart(thermo.Warming, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.From).To(Equal(thermo.Warming))
		Expect(tr.To).To(Equal(thermo.Warming))
		Expect(tr.Forced).To(BeTrue())
		Expect(m.Forced()).To(BeTrue())
		Expect(seen).To(HaveLen(1))

		_, err = m.Restart(thermo.Mode(9), now)
		Expect(err).To(MatchError(thermo.ErrUnknownMode))
	})

	It("rejects an unknown mode", func() {
		_, _, err := m.Force(thermo.Mode(9), now)
		Expect(err).To(MatchError(thermo.ErrUnknownMode))
		Expect(m.Forced()).To(BeFalse())
	})
})
