// Package api defines the wire-format types shared by the HTTP server and
// the CLI client, and converters from internal job, event and health models.
//
// DTOs use camelCase JSON tags. Statuses are exposed as their lowercase
// names and timestamps as RFC3339 with milliseconds. Errors are returned as
// ErrorResponse with a stable machine-readable kind next to the message.
package api
