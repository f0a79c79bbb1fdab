// Package memdoc provides an in-memory implementation of the doc.Document
// and doc.Editor interfaces.
//
// It is a deliberately simple line-based buffer: good enough to back the
// autofmt CLI and to stand in for a real host editor in tests, while
// exercising every part of the host boundary the engine depends on: change
// and destroy observation, save interception, selection and cursor state,
// and undo grouping via Transact.
//
// All methods are safe for concurrent use. Change and destroy callbacks are
// invoked synchronously, outside the document lock.
package memdoc
