package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/batch-email/internal/domain"
)

func TestParseRequiredFields(t *testing.T) {
	tests := []struct {
		in   string
		want RequiredFields
	}{
		{"", nil},
		{" , ,", nil},
		{"send_to", RequiredFields{"send_to"}},
		{" send_to , first_name,send_to,, subject ", RequiredFields{"send_to", "first_name", "subject"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseRequiredFields(tt.in), "input %q", tt.in)
	}
}

func TestMissingBasicFields(t *testing.T) {
	required := ParseRequiredFields("send_to,first_name,last_name")
	headers := []string{"send_to", "first_name"}

	tests := []struct {
		name   string
		record []string
		want   []string
	}{
		{"all present except absent column", []string{"a@x.com", "Ann"}, []string{"last_name"}},
		{"blank and whitespace", []string{"  ", "\t"}, []string{"send_to", "first_name", "last_name"}},
		{"short record", []string{"a@x.com"}, []string{"first_name", "last_name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := domain.NewRow(2, headers, tt.record)
			assert.Equal(t, tt.want, MissingBasicFields(row, required))
		})
	}
}

func TestMissingBasicFields_NoneRequired(t *testing.T) {
	row := domain.NewRow(2, []string{"a"}, []string{""})
	assert.Empty(t, MissingBasicFields(row, nil))
}

func TestBlankRecord(t *testing.T) {
	assert.True(t, blankRecord([]string{"", " ", "\t"}))
	assert.True(t, blankRecord(nil))
	assert.False(t, blankRecord([]string{"", "x"}))
}
