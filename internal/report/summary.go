package report

import (
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/ignite/batch-email/internal/domain"
)

// Format selects the rendering of list placeholders.
type Format string

const (
	FormatHTML Format = "html"
	FormatText Format = "txt"
)

// TargetSummary is the per-file line of the report.
type TargetSummary struct {
	FileName     string
	SuccessCount int
	FailedCount  int
}

// Total is the number of rows accounted for.
func (t TargetSummary) Total() int { return t.SuccessCount + t.FailedCount }

// Summary aggregates the failed targets of a run.
type Summary struct {
	Targets      []TargetSummary
	SuccessCount int
	FailedCount  int
	SuccessRate  int
	ErrorRate    int
}

// Summarize counts published recipients as successes and failed rows as
// failures. Batch failures count each recipient, and structural or
// unexpected entries count once. Rates are percentages rounded half to even;
// an empty run has both rates at zero.
func Summarize(targets []domain.TargetOutcome) Summary {
	var s Summary
	for _, t := range targets {
		_, _, name := domain.SplitPath(t.Target.Path())
		failed := t.RowErrorCount()
		for _, e := range t.Errors {
			if e.Kind == domain.KindStructural || e.Kind == domain.KindUnexpected {
				failed++
			}
		}
		ts := TargetSummary{FileName: name, SuccessCount: t.PublishedCount, FailedCount: failed}
		s.Targets = append(s.Targets, ts)
		s.SuccessCount += ts.SuccessCount
		s.FailedCount += ts.FailedCount
	}

	if total := s.SuccessCount + s.FailedCount; total > 0 {
		s.SuccessRate = int(math.RoundToEven(float64(s.SuccessCount) / float64(total) * 100))
		s.ErrorRate = int(math.RoundToEven(float64(s.FailedCount) / float64(total) * 100))
	}
	return s
}

// Bindings returns the template variables for f.
func (s Summary) Bindings(f Format) map[string]any {
	var attachments, details strings.Builder
	for _, t := range s.Targets {
		if f == FormatHTML {
			name := html.EscapeString(t.FileName)
			fmt.Fprintf(&details, "<li>%s – %d of %d rows failed</li>", name, t.FailedCount, t.Total())
			fmt.Fprintf(&attachments, "<li><a>%s</a></li>", name)
			continue
		}
		fmt.Fprintf(&details, "- %s: %d of %d rows failed\n", t.FileName, t.FailedCount, t.Total())
		fmt.Fprintf(&attachments, "- %s\n", t.FileName)
	}

	return map[string]any{
		"aggregate_success_rate": s.SuccessRate,
		"aggregate_error_rate":   s.ErrorRate,
		"aggregate_success_text": bar("bar-success", s.SuccessRate),
		"aggregate_error_text":   bar("bar-failed", s.ErrorRate),
		"attachment_list":        attachments.String(),
		"batch_success_details":  details.String(),
	}
}

func bar(class string, rate int) string {
	if rate == 0 {
		return ""
	}
	return fmt.Sprintf(`<div class="%s" style="width: %d%%">%d%%</div>`, class, rate, rate)
}
