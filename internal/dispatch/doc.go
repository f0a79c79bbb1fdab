// Package dispatch runs the formatting state machine for a single trigger.
//
// Given a trigger and the provider registry, the dispatcher selects the
// backend (priority order, first match wins), invokes the right operation
// for the trigger kind, and commits the result through the apply package.
// Each dispatch is terminal on success, failure, or empty result.
//
// Per-kind behavior:
//
//   - Command: range formatting over the normalized selection when one
//     exists and the provider supports it, whole-document otherwise.
//     Failures surface as a user-visible notification.
//   - Type: gated on the format-on-type setting and the keystroke
//     heuristic; waits one settle tick before reading the cursor, then
//     formats just before the trigger character. Edits are applied as a
//     separate undo step. Failures are logged only.
//   - Save: whole-document formatting under a hard wall-clock budget. The
//     persistence action carried by the trigger runs exactly once as the
//     final step, whatever the formatting outcome. Failures are logged
//     only; the save must never be blocked.
//
// Configuration is consulted through a settings function at trigger time,
// never cached across triggers.
package dispatch
