package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a status message
	w.Status("🔍", "Counting rows...")

	// Then: output contains icon and message
	assert.Equal(t, "🔍 Counting rows...\n", buf.String())
}

func TestWriter_Status_NoIconIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Status("", "detail")

	assert.Equal(t, "   detail\n", buf.String())
}

func TestWriter_Helpers(t *testing.T) {
	tests := []struct {
		name string
		emit func(w *Writer)
		want string
	}{
		{"success", func(w *Writer) { w.Successf("wrote %d lines", 3) }, "✅ wrote 3 lines\n"},
		{"warning", func(w *Writer) { w.Warningf("no %s", "key") }, "⚠️  no key\n"},
		{"statusf", func(w *Writer) { w.Statusf("→", "%s", "x") }, "→ x\n"},
		{"newline", func(w *Writer) { w.Newline() }, "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.emit(New(buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}
