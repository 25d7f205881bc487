// Package control provides the feedback primitives used by the thermal
// loops:
//
//   - [PID]: proportional-integral-derivative unit with output clamp,
//     symmetric integral clamp (anti-windup), reset and decay
//   - [LowPass]: one-pole smoothing filter for actuator commands
//
// # Usage
//
//	pid := control.NewPID(control.Gains{Kp: 0.03, Ki: 0.01, Kd: 0.01}, 0, 1, 50)
//	duty := pid.Update(target-ptc, 0.1, feedforward)
//
// A PID is owned by exactly one loop; it is not safe for concurrent use.
// Gains can be tuned live through [PID.SetParam].
package control
