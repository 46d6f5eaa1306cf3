// Package extract turns requirement documents into index rows.
//
// Everything here is a pure function of in-memory documents. Directory
// walking and file I/O live at the edges (package corpus), so tag matching
// and definition parsing can be tested on literal fixtures.
//
// # Lexical conventions
//
//   - A requirement tag is "$REQ_" followed by letters, digits, underscores
//     or hyphens. Every match on every line is a location.
//   - A definition starts at a line of the form "## $REQ_ID: Title" and runs
//     until the next such heading or the end of the document.
//   - An optional "**Source:** text" line inside a definition names its
//     attribution. The requirement text is whatever follows that line, or
//     the whole block when there is none.
//
// Malformed headings (a "## $REQ_" line without an id/title pair) discard
// their block with a warning. Extraction never fails outright.
package extract
