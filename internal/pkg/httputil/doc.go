// Package httputil provides shared HTTP response/request utilities for handlers
// and the response envelope returned by the event handlers.
//
// Handlers use these helpers instead of writing raw http.ResponseWriter
// calls, so JSON formatting, error structures, and logging stay consistent.
package httputil
