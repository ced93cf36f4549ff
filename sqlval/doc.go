// Package sqlval renders Go values as SQL literal text.
//
// ToSQL maps one value to a literal that can be spliced into a query:
// NULL, TRUE/FALSE, unquoted numbers, quoted ISO-8601 timestamps, X'..'
// hex blobs, bracketed arrays and single-quoted strings with doubled
// quotes. Bind substitutes those literals for ? placeholders.
//
// Escaping covers literal values only. Identifiers and query structure are
// the caller's responsibility.
package sqlval
