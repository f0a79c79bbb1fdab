// Package doc defines the boundary between the formatting engine and the
// host editor. The engine never owns text buffers; it consumes the Document
// and Editor interfaces declared here and holds a Document reference only for
// the duration of a single formatting operation.
//
// The package also defines the position and edit types shared by every
// component:
//
//   - Position: zero-based line/column coordinate
//   - Range: half-open [Start, End) span between two positions
//   - TextEdit: a single range replacement
//   - EditSet: a formatter's proposed result, either targeted edits or a
//     whole-document replacement with optional cursor repositioning
//
// An in-memory reference implementation of Document and Editor lives in the
// memdoc subpackage; it backs the test suites and the autofmt CLI.
package doc
