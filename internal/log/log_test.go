package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logLine struct {
	TS     string         `json:"ts"`
	Level  string         `json:"level"`
	Action string         `json:"action"`
	Kind   string         `json:"kind"`
	Err    string         `json:"error"`
	Fields map[string]any `json:"fields"`
}

func capture(t *testing.T, fn func()) []logLine {
	t.Helper()
	var buf bytes.Buffer
	old := Output()
	SetOutput(&buf)
	defer SetOutput(old)

	fn()

	var out []logLine
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var l logLine
		require.NoError(t, json.Unmarshal([]byte(line), &l), line)
		out = append(out, l)
	}
	return out
}

func TestEntriesAreActionKeyedJSON(t *testing.T) {
	lines := capture(t, func() {
		Audit(nil, "sale.record", map[string]any{"sale_id": 7})
		Security(nil, "auth.login.fail", nil)
		Error(nil, "sale.invoice.fail", errors.New("boom"), map[string]any{"sale_id": 7})
	})
	require.Len(t, lines, 3)

	assert.Equal(t, "sale.record", lines[0].Action)
	assert.Equal(t, "audit", lines[0].Kind)
	assert.Equal(t, "info", lines[0].Level)
	assert.EqualValues(t, 7, lines[0].Fields["sale_id"])
	assert.NotEmpty(t, lines[0].TS)

	assert.Equal(t, "warning", lines[1].Level)
	assert.Equal(t, "security", lines[1].Kind)

	assert.Equal(t, "error", lines[2].Level)
	assert.Equal(t, "boom", lines[2].Err)
}

func TestSetLevelFiltersInfo(t *testing.T) {
	SetLevel("error")
	defer SetLevel("info")

	lines := capture(t, func() {
		Info(nil, "dropped", nil)
		Error(nil, "kept", errors.New("x"), nil)
	})
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0].Action)
}
