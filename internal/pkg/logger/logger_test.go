package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	SetRedactPII(true)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(INFO)
	})
	return &buf
}

func entries(t *testing.T, buf *bytes.Buffer) []map[string]string {
	t.Helper()
	var out []map[string]string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]string
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, INFO, ParseLevel("INFO"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel(" Error "))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
	assert.Equal(t, "WARN", WARN.String())
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, WARN)

	Info("dropped")
	Warn("kept", "k", 1)

	got := entries(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "WARN", got[0]["level"])
	assert.Equal(t, "kept", got[0]["msg"])
	assert.Equal(t, "1", got[0]["k"])
}

func TestWith_AddsFields(t *testing.T) {
	buf := capture(t, INFO)

	log := With("run_id", "r-1")
	log.Info("processing", "target", "bucket/key.csv")
	log.With("seq", 2).Error("publish failed")

	got := entries(t, buf)
	require.Len(t, got, 2)
	assert.Equal(t, "r-1", got[0]["run_id"])
	assert.Equal(t, "bucket/key.csv", got[0]["target"])
	assert.Equal(t, "r-1", got[1]["run_id"])
	assert.Equal(t, "2", got[1]["seq"])
}

func TestRedaction(t *testing.T) {
	buf := capture(t, INFO)

	Info("row rejected", "send_to", "john.doe@example.com", "note", "contact ab@example.com now")

	got := entries(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "jo***@example.com", got[0]["send_to"])
	assert.Equal(t, "contact ***@example.com now", got[0]["note"])
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}
