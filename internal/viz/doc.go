// Package viz provides a terminal monitor for the enclosure controller.
//
// The monitor steps a [Source] (usually a closed-loop simulation) on every
// frame and renders the box, PTC and desired PTC traces with the current
// controller outputs:
//
//   - [Monitor]: live view of one run with tuning keys
//   - [App]: preset picker that starts a Monitor
//
// # Key Bindings
//
//	Space   - Pause/Resume
//	+/-     - Faster/slower virtual time
//	Up/Down - Raise/lower target by 0.5 °C
//	h w c i - Force heating, warming, cooling or idle
//	a       - Release forced mode
//	t       - Cycle color themes
//	?       - Show help overlay
package viz
