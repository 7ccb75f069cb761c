// Package rate admits or rejects login attempts per client address over a
// trailing time window.
//
// # Window semantics
//
// Sliding window: each admitted attempt is recorded as a (timestamp,
// identifier) pair; a check prunes the address history to the trailing
// window and admits only while the pruned count is below the ceiling.
// A rejected attempt is NOT recorded, so a client under sustained pressure
// regains admission once old attempts age out instead of being locked out
// permanently.
//
// The prune-count-append sequence is a single critical section per address
// in every AttemptStore implementation.
//
// # What this package must NOT do
//
//   - Distinguish failed-credential attempts from successful ones (the
//     caller checks before verifying credentials, so both count equally).
//   - Be imported outside the authkit module.
package rate
