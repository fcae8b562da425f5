// Package report builds the administrator failure report: the aggregate
// summary, the rendered HTML and text bodies and one errors CSV per failed
// target.
package report
