/*
Package schema holds the static, immutable description of a form: ordered
pages, fields, and reusable blocks, together with the loader that reads a
serialized definition (JSON or YAML), validates it against a JSON Schema,
and decodes it into the typed model.

A FormDefinition is loaded once per session and treated as read-only by
every other package; all per-request mutation happens on FieldState, never
here.
*/
package schema
