// Package extract turns fetched HTML into a record and a list of links.
//
// Field values are selected with CSS selectors (goquery) over a tree built by
// golang.org/x/net/html after converting the body to UTF-8. Each Rule names a
// field, the selector of the element holding it, and optionally an attribute
// to read and a regular expression whose first group is kept.
//
// A page missing any required field yields an empty record. Its links are
// still returned, because listing pages carry no record but lead to pages
// that do.
package extract
