/*
Package datasource resolves a field's selectable options from its source
specification: a static literal list, a templated remote HTTP query, or a
filtered record store.

The engine never performs I/O itself; remote calls go through the Fetcher
port (implemented here with resty and a hard timeout) and record lookups
through the RecordStore port. Results can be cached across requests in a
TTL store keyed by the fully-rendered query.
*/
package datasource
