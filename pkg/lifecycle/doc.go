// Package lifecycle orchestrates the bridge connection as an explicit
// finite-state machine.
//
// The machine sequences preference loading, stored-configuration
// lookup, two-strategy discovery, linking, persistence and session
// establishment, with a typed failure state after each stage. All
// retry policy lives here: leaf components never retry internally, and
// a failure state is only left through an external event.
//
// A single goroutine owns the machine. Operations run one at a time at
// invoke boundaries; external callers interact only by reading state
// snapshots and dispatching the events "retry", "link" and "unlink"
// (case-insensitive). Dispatch is fire-and-forget and never blocks.
// Observers registered with OnChange receive a snapshot after every
// transition.
package lifecycle
