// Package auditlog records every ledger request and its response as an
// individual JSON file.
//
// Files are named request-<timestamp>.json where the timestamp is the UTC
// ISO-8601 time of the call with ':' and '.' replaced by '-'. Writes happen
// on a background goroutine so callers never wait on disk I/O; Flush and
// Close let short-lived programs drain the queue before exiting.
package auditlog
