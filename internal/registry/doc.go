// Package registry maintains the set of registered formatting providers and
// resolves which providers apply to a given content type.
//
// A Provider is a capability set: any subset of document, range, and
// cursor-position formatting. Providers declare a comma-separated selector
// of content-type identifiers and an integer priority. Resolution filters to
// providers whose selector contains the content type and whose priority is
// positive, ordered by descending priority with registration order breaking
// ties.
//
// Registration returns a Registration whose Cancel removes the provider.
// Removal is idempotent and keyed on provider identity, so concurrent or
// repeated cancellation is safe.
package registry
