// Package trigger turns raw host-editor activity into formatting triggers.
//
// A Builder is attached to each open document. It produces the three trigger
// kinds the engine understands:
//
//   - Command: the user invoked the explicit format action
//   - Type: a debounced buffer change; change notifications arriving within
//     one debounce window collapse into a single trigger carrying the final
//     change of the burst
//   - Save: the user requested a save; the builder intercepts the save
//     action before persistence runs, so formatting can finish first. The
//     trigger carries a persist function the downstream pipeline must invoke
//     exactly once; skipping the save because formatting failed would be
//     worse than saving unformatted content
//
// Triggers are published onto the shared event bus. The stream for a
// document terminates with a TopicDocumentDestroyed sentinel when the host
// destroys the buffer.
package trigger
