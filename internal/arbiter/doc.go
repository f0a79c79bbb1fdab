// Package arbiter serializes formatting work per document.
//
// The arbiter subscribes to the merged trigger stream and partitions it by
// document identity (the stable buffer handle, never the trigger payload).
// Within a partition it enforces a switch-to-latest discipline: each trigger
// bumps the partition's generation counter and cancels the context of any
// still-running operation, so only the most recent trigger's result can ever
// be committed. Older operations are abandoned, not queued, and their
// eventual completion is ignored.
//
// Document destruction is the partition's terminal sentinel: the partition
// is dropped immediately and any in-flight operation is abandoned silently,
// not failed.
//
// Across documents there is no ordering guarantee; operations proceed
// independently.
package arbiter
