package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/ignite/batch-email/internal/domain"
)

// File is one report attachment.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// PlainTextName is the attachment carrying the text body.
const PlainTextName = "plain-text-email"

// Report is a rendered failure report.
type Report struct {
	Summary Summary
	HTML    string
	Text    string
	Files   []File
}

// Build renders the report for the failed targets of a run: the HTML body,
// one errors CSV per target and the text body as the last attachment.
func Build(ctx context.Context, r *Renderer, failed []domain.TargetOutcome) (Report, error) {
	rep := Report{Summary: Summarize(failed)}

	var err error
	if rep.HTML, err = r.Render(ctx, rep.Summary, FormatHTML); err != nil {
		return Report{}, err
	}
	if rep.Text, err = r.Render(ctx, rep.Summary, FormatText); err != nil {
		return Report{}, err
	}

	used := make(map[string]int)
	for _, t := range failed {
		data, err := ErrorsCSV(t)
		if err != nil {
			return Report{}, fmt.Errorf("errors csv for %s: %w", t.Target.Path(), err)
		}
		rep.Files = append(rep.Files, File{Name: attachmentName(used, t.Target), ContentType: "text/csv", Data: data})
	}
	rep.Files = append(rep.Files, File{Name: PlainTextName, ContentType: "text/plain", Data: []byte(rep.Text)})
	return rep, nil
}

// attachmentName returns the target's file name, suffixed when two targets
// share one.
func attachmentName(used map[string]int, t domain.Target) string {
	name := t.Object
	if name == "" {
		_, _, name = domain.SplitPath(t.Path())
	}
	used[name]++
	if n := used[name]; n > 1 {
		base, ext := name, ""
		if i := strings.LastIndex(name, "."); i > 0 {
			base, ext = name[:i], name[i:]
		}
		return fmt.Sprintf("%s-%d%s", base, n, ext)
	}
	return name
}

// ErrorsCSV renders a target's errors as CSV with the columns row_number,
// the file's headers, Error, Reason and MissingFields. A batch failure
// yields one line per failed recipient; structural and unexpected entries
// yield one line with empty row columns.
func ErrorsCSV(t domain.TargetOutcome) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{domain.RowNumberField}, t.Headers...)
	header = append(header, "Error", "Reason", "MissingFields")
	if err := w.Write(header); err != nil {
		return nil, err
	}

	line := func(row *domain.Row, e domain.ErrorEntry) []string {
		rec := make([]string, 0, len(header))
		if row != nil {
			rec = append(rec, strconv.Itoa(row.Number))
		} else {
			rec = append(rec, "")
		}
		for _, h := range t.Headers {
			if row != nil {
				rec = append(rec, row.Value(h))
			} else {
				rec = append(rec, "")
			}
		}
		msg := e.Message
		if e.Details != "" {
			msg += ": " + e.Details
		}
		return append(rec, msg, string(e.Reason), strings.Join(e.MissingFields, ","))
	}

	for _, e := range t.Errors {
		if e.Kind == domain.KindBatch {
			for i := range e.FailedRecipients {
				if err := w.Write(line(&e.FailedRecipients[i], e)); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := w.Write(line(e.Row, e)); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
