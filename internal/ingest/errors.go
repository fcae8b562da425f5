package ingest

import "errors"

// ErrLookupFailed wraps a template lookup that failed for a reason other
// than the template not existing. It is not cached.
var ErrLookupFailed = errors.New("template lookup failed")
