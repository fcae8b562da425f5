// Package sendbatch handles storage events for uploaded recipient files. For
// every matching object it streams the CSV, validates rows, publishes
// recipient batches to the queue and classifies the run. Failed runs are
// reported to the administrators, and the objects of a fully failed run are
// moved under the error prefix.
package sendbatch
