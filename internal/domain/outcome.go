package domain

import (
	"fmt"
)

// ErrorKind distinguishes where an ErrorEntry was raised.
type ErrorKind string

const (
	KindRow        ErrorKind = "row"
	KindStructural ErrorKind = "structural"
	KindBatch      ErrorKind = "batch"
	KindUnexpected ErrorKind = "unexpected"
)

// Reason is the machine-readable classification of an ErrorEntry.
type Reason string

const (
	ReasonMissingBasicFields    Reason = "missing_basic_fields"
	ReasonMissingTemplateFields Reason = "missing_template_fields"
	ReasonMissingBoth           Reason = "missing_both"
	ReasonTemplateNotFound      Reason = "template_not_found"
	ReasonUnidentified          Reason = "unidentified"
	ReasonNoHeaders             Reason = "no_headers"
	ReasonUnreadableContent     Reason = "unreadable_content"
	ReasonPublishFailed         Reason = "publish_failed"
	ReasonUnexpected            Reason = "unexpected"
)

// ErrorEntry is one recorded failure inside a target. Row errors carry the
// offending row, batch errors the recipients that could not be published.
type ErrorEntry struct {
	Kind             ErrorKind
	Reason           Reason
	Message          string
	Row              *Row
	MissingFields    []string
	FailedRecipients []Row
	Details          string
}

// MissingFieldsError builds the row error for a row lacking basic and/or
// template required fields. At least one of the lists must be non-empty.
func MissingFieldsError(row Row, basic, template []string) ErrorEntry {
	e := ErrorEntry{Kind: KindRow, Row: &row}
	switch {
	case len(basic) > 0 && len(template) > 0:
		e.Reason = ReasonMissingBoth
		e.Message = "Missing basic & template specific required fields"
	case len(basic) > 0:
		e.Reason = ReasonMissingBasicFields
		e.Message = "Missing basic required fields"
	default:
		e.Reason = ReasonMissingTemplateFields
		e.Message = "Missing template specific required fields"
	}
	e.MissingFields = append(append([]string{}, basic...), template...)
	return e
}

// TemplateNotFoundError records a row whose template reference has no
// metadata entry.
func TemplateNotFoundError(row Row, template string) ErrorEntry {
	return ErrorEntry{
		Kind:    KindRow,
		Reason:  ReasonTemplateNotFound,
		Message: fmt.Sprintf("Template does not exist: %s", template),
		Row:     &row,
	}
}

// UnidentifiedError records a row that failed for a reason other than
// validation, such as a malformed record or a failed lookup.
func UnidentifiedError(row Row, err error) ErrorEntry {
	return ErrorEntry{
		Kind:    KindRow,
		Reason:  ReasonUnidentified,
		Message: fmt.Sprintf("Unidentified error: %v", err),
		Row:     &row,
	}
}

// StructuralError records a failure of the file as a whole.
func StructuralError(reason Reason, message string) ErrorEntry {
	return ErrorEntry{Kind: KindStructural, Reason: reason, Message: message}
}

// BatchFailure records a batch that could not be published.
func BatchFailure(recipients []Row, err error) ErrorEntry {
	return ErrorEntry{
		Kind:             KindBatch,
		Reason:           ReasonPublishFailed,
		Message:          fmt.Sprintf("Failed to send batch: %v", err),
		FailedRecipients: recipients,
	}
}

// UnexpectedError records a failure caught at the target boundary.
func UnexpectedError(details string) ErrorEntry {
	return ErrorEntry{
		Kind:    KindUnexpected,
		Reason:  ReasonUnexpected,
		Message: "Unexpected error",
		Details: details,
	}
}

// RowNumber returns the row number of a row error, or 0.
func (e ErrorEntry) RowNumber() int {
	if e.Row == nil {
		return 0
	}
	return e.Row.Number
}

// errorEntryKeys are written by ErrorEntry itself; same-named CSV columns
// are dropped from row errors so every key is unique.
var errorEntryKeys = []string{"Error", "Details", "Reason", "MissingFields"}

// MarshalJSON flattens the entry the way downstream consumers read it: row
// errors are the row's own object plus "Error" and "Reason".
func (e ErrorEntry) MarshalJSON() ([]byte, error) {
	var obj jsonObject
	switch e.Kind {
	case KindRow:
		if e.Row != nil {
			obj = e.Row.object(errorEntryKeys...)
		}
	case KindBatch:
		recipients := e.FailedRecipients
		if recipients == nil {
			recipients = []Row{}
		}
		obj = append(obj, jsonField{"FailedRecipients", recipients})
	}

	obj = append(obj, jsonField{"Error", e.Message})
	if e.Details != "" {
		obj = append(obj, jsonField{"Details", e.Details})
	}
	obj = append(obj, jsonField{"Reason", e.Reason})
	if len(e.MissingFields) > 0 {
		obj = append(obj, jsonField{"MissingFields", e.MissingFields})
	}
	return obj.MarshalJSON()
}

// TargetOutcome is the result of processing one target.
type TargetOutcome struct {
	Target         Target
	Headers        []string
	SuccessCount   int
	PublishedCount int
	Errors         []ErrorEntry
	ErrorCount     int
}

// NewTargetOutcome returns an empty outcome for t.
func NewTargetOutcome(t Target) TargetOutcome {
	return TargetOutcome{Target: t, Errors: []ErrorEntry{}}
}

// AddError appends entries and keeps ErrorCount equal to len(Errors).
func (o *TargetOutcome) AddError(entries ...ErrorEntry) {
	o.Errors = append(o.Errors, entries...)
	o.ErrorCount = len(o.Errors)
}

// HasErrors reports whether anything went wrong for the target.
func (o TargetOutcome) HasErrors() bool {
	return len(o.Errors) > 0
}

// RowErrorCount counts the rows that failed, expanding batch failures to
// their recipients.
func (o TargetOutcome) RowErrorCount() int {
	n := 0
	for _, e := range o.Errors {
		switch e.Kind {
		case KindRow:
			n++
		case KindBatch:
			n += len(e.FailedRecipients)
		}
	}
	return n
}

// MarshalJSON renders the outcome payload with Target as its
// "<bucket>/<key>" path.
func (o TargetOutcome) MarshalJSON() ([]byte, error) {
	return o.object("").MarshalJSON()
}

func (o TargetOutcome) object(detail string) jsonObject {
	errs := o.Errors
	if errs == nil {
		errs = []ErrorEntry{}
	}
	obj := jsonObject{{"Target", o.Target.Path()}}
	if detail != "" {
		obj = append(obj, jsonField{"Error", detail})
	}
	return append(obj,
		jsonField{"SuccessCount", o.SuccessCount},
		jsonField{"PublishedCount", o.PublishedCount},
		jsonField{"Errors", errs},
		jsonField{"ErrorCount", len(errs)},
	)
}

// FailedTarget is a TargetOutcome reported back to the caller with a
// summary Error message next to its Target.
type FailedTarget struct {
	Outcome TargetOutcome
	Error   string
}

func (f FailedTarget) MarshalJSON() ([]byte, error) {
	return f.Outcome.object(f.Error).MarshalJSON()
}

// RunStatus is the tri-state classification of a run.
type RunStatus string

const (
	RunSuccess        RunStatus = "success"
	RunPartialSuccess RunStatus = "partial_success"
	RunFailure        RunStatus = "failure"
)

// ClassifyRun maps the aggregate counts to a RunStatus.
func ClassifyRun(successCount, failedTargets int) RunStatus {
	switch {
	case failedTargets == 0:
		return RunSuccess
	case successCount > 0:
		return RunPartialSuccess
	default:
		return RunFailure
	}
}

// RunOutcome is the aggregate of every target in one invocation.
type RunOutcome struct {
	RunID         string
	SuccessCount  int
	Targets       []TargetOutcome
	FailedTargets []TargetOutcome
	Status        RunStatus
}

// ErrorCount sums the error entries over all failed targets.
func (r RunOutcome) ErrorCount() int {
	n := 0
	for _, t := range r.FailedTargets {
		n += t.ErrorCount
	}
	return n
}
