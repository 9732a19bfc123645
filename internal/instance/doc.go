/*
Package instance provides a structured, type-safe representation for
field-instance identifiers.

A top-level field instance is addressed by its plain field id. A field
inside a repeatable block row is addressed by the composite form
`{block_id}-{subfield_id}-{row_index}`, e.g. `trips-destination-2`.

Field and block ids are restricted to `[A-Za-z0-9_]+` by the schema
loader, which keeps the composite form unambiguous. This package
centralizes all formatting and parsing logic for these identifiers.
*/
package instance
