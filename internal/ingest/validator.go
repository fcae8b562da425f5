package ingest

import (
	"strings"

	"github.com/ignite/batch-email/internal/domain"
)

// RequiredFields lists the columns every row must fill, in report order.
type RequiredFields []string

// ParseRequiredFields splits a comma-separated list, trimming names and
// dropping empties and duplicates. An empty string yields no fields.
func ParseRequiredFields(s string) RequiredFields {
	var out RequiredFields
	seen := make(map[string]bool)
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// MissingBasicFields returns the required fields that are absent from row
// or blank after trimming, in the order of required.
func MissingBasicFields(row domain.Row, required RequiredFields) []string {
	var missing []string
	for _, name := range required {
		if row.IsBlank(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// blankRecord reports whether every cell of a CSV record is whitespace.
func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
