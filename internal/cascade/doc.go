// Package cascade implements the fast control cycle: an outer loop that
// turns box temperature error into a desired PTC temperature, an inner
// loop that turns PTC temperature error into heater duty, and an
// independent cooling PI loop that drives the fan. Each control mode maps
// to one regime that decides which loops run; the safety monitor is
// consulted inside every step.
//
// A Controller is owned by the fast task and is not safe for concurrent
// use.
package cascade
