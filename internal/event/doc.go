// Package event provides the synchronous topic bus that carries formatting
// triggers and document lifecycle events between the trigger builders and
// the arbiter.
//
// Every per-document trigger stream publishes onto the same bus, which makes
// the bus the merged global event stream: subscribers see events in the
// order they were published, and partitioning back into per-document streams
// is the arbiter's job.
//
// Delivery is synchronous and in subscription order. Handler errors are
// counted but never propagated to the publisher; a failing subscriber must
// not affect other documents' streams.
package event
