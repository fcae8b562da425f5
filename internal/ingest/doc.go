// Package ingest turns CSV recipient files into queued batches.
//
// A BatchReader pulls rows from a decoded object stream, validates each one
// against the static required fields (MissingBasicFields) and the fields its
// email template declares (TemplateFieldResolver), and groups the valid rows
// into bounded batches. A TargetProcessor drives the reader for one storage
// object and publishes every batch through a MessageQueue. An Aggregator
// runs the processor over all targets of an event and classifies the run.
//
// Nothing in this package returns an error past TargetProcessor: failures
// are recorded as domain.ErrorEntry values on the target's outcome.
package ingest
