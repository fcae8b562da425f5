package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/ignite/batch-email/internal/domain"
)

// DefaultMaxBatchSize is the batch bound when ReaderConfig leaves it unset.
const DefaultMaxBatchSize = 50

// ReaderConfig controls a BatchReader.
type ReaderConfig struct {
	MaxBatchSize int
	Required     RequiredFields
	// Resolver checks template-specific fields. Nil disables the check.
	Resolver *TemplateFieldResolver
}

// ReadResult is one item pulled from a BatchReader. Full batches carry no
// errors; the Final item carries the remaining rows and every row error.
type ReadResult struct {
	Batch  []domain.Row
	Errors []domain.ErrorEntry
	Final  bool
}

// BatchReader streams a CSV file as validated, size-bounded batches. It
// makes a single pass over its input and cannot be restarted.
type BatchReader struct {
	csv     *csv.Reader
	cfg     ReaderConfig
	headers []string
	started bool
	done    bool
	batch   []domain.Row
	errs    []domain.ErrorEntry
	valid   int
	// rowNum is the number of the last non-blank record; the header is 1.
	rowNum int
}

// NewBatchReader wraps r, which must already be decoded UTF-8 text.
func NewBatchReader(r io.Reader, cfg ReaderConfig) *BatchReader {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // rows may be ragged; missing cells are absent fields
	cr.LazyQuotes = true
	return &BatchReader{csv: cr, cfg: cfg}
}

// Headers returns the header row, or nil before the first Next or when the
// file has none.
func (b *BatchReader) Headers() []string { return b.headers }

// ValidCount returns the number of rows accepted so far.
func (b *BatchReader) ValidCount() int { return b.valid }

// Next returns the next batch. The second value is false once the Final
// item has been returned.
func (b *BatchReader) Next(ctx context.Context) (ReadResult, bool) {
	if b.done {
		return ReadResult{}, false
	}
	if !b.started {
		b.started = true
		if !b.readHeader() {
			b.done = true
			return ReadResult{
				Batch:  []domain.Row{},
				Errors: []domain.ErrorEntry{domain.StructuralError(domain.ReasonNoHeaders, "No headers found")},
				Final:  true,
			}, true
		}
	}

	for {
		record, err := b.csv.Read()
		if errors.Is(err, io.EOF) {
			return b.finish(), true
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				// The source failed underneath the parser; nothing more can be read.
				b.errs = append(b.errs, domain.UnexpectedError(fmt.Sprintf("reading CSV: %v", err)))
				return b.finish(), true
			}
			b.rowNum++
			b.errs = append(b.errs, domain.UnidentifiedError(domain.NewRow(b.rowNum, b.headers, record), err))
			continue
		}
		if blankRecord(record) {
			continue
		}

		b.rowNum++
		row := domain.NewRow(b.rowNum, b.headers, record)
		if entry := b.classify(ctx, row); entry != nil {
			b.errs = append(b.errs, *entry)
			continue
		}

		b.valid++
		b.batch = append(b.batch, row)
		if len(b.batch) == b.cfg.MaxBatchSize {
			full := b.batch
			b.batch = nil
			return ReadResult{Batch: full}, true
		}
	}
}

// All adapts Next to a range-over-func sequence.
func (b *BatchReader) All(ctx context.Context) iter.Seq[ReadResult] {
	return func(yield func(ReadResult) bool) {
		for {
			res, ok := b.Next(ctx)
			if !ok || !yield(res) {
				return
			}
		}
	}
}

// readHeader takes the first non-blank record as the header. Any read
// failure before it is terminal for the file.
func (b *BatchReader) readHeader() bool {
	for {
		record, err := b.csv.Read()
		if err != nil {
			return false
		}
		if blankRecord(record) {
			continue
		}
		headers := make([]string, len(record))
		for i, h := range record {
			headers[i] = strings.TrimSpace(h)
		}
		b.headers = headers
		b.rowNum = 1
		return true
	}
}

func (b *BatchReader) finish() ReadResult {
	b.done = true
	res := ReadResult{Batch: b.batch, Errors: b.errs, Final: true}
	if res.Batch == nil {
		res.Batch = []domain.Row{}
	}
	if res.Errors == nil {
		res.Errors = []domain.ErrorEntry{}
	}
	b.batch, b.errs = nil, nil
	return res
}

// classify returns the error entry for an invalid row, or nil.
func (b *BatchReader) classify(ctx context.Context, row domain.Row) *domain.ErrorEntry {
	basic := MissingBasicFields(row, b.cfg.Required)

	tmpl, err := b.cfg.Resolver.MissingTemplateFields(ctx, row)
	if err != nil {
		var e domain.ErrorEntry
		if errors.Is(err, domain.ErrTemplateNotFound) {
			e = domain.TemplateNotFoundError(row, strings.TrimSpace(row.Value(b.cfg.Resolver.TemplateField())))
		} else {
			e = domain.UnidentifiedError(row, err)
		}
		return &e
	}

	if len(basic) > 0 || len(tmpl) > 0 {
		e := domain.MissingFieldsError(row, basic, tmpl)
		return &e
	}
	return nil
}
