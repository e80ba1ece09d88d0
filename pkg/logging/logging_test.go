package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(level)
	l.SetOutput(&buf)
	return l, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var out []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		out = append(out, e)
	}
	return out
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level Level
		want  []Level
	}{
		{LevelDebug, []Level{LevelDebug, LevelInfo, LevelWarn, LevelError}},
		{LevelInfo, []Level{LevelInfo, LevelWarn, LevelError}},
		{LevelWarn, []Level{LevelWarn, LevelError}},
		{LevelError, []Level{LevelError}},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			l, buf := newBufferLogger(tt.level)
			l.Debug("d")
			l.Info("i")
			l.Warn("w")
			l.Error("e")

			var got []Level
			for _, e := range decodeLines(t, buf) {
				got = append(got, e.Level)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogger_WithFieldsMergesAndIsolates(t *testing.T) {
	l, buf := newBufferLogger(LevelInfo)
	child := l.WithFields(map[string]any{"vault": "0xabc"})
	child.Info("deposit accepted", map[string]any{"amount": 5})
	l.Info("plain")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "0xabc", entries[0].Fields["vault"])
	assert.Equal(t, float64(5), entries[0].Fields["amount"])
	assert.Nil(t, entries[1].Fields)
}

func TestLogger_ErrorErr(t *testing.T) {
	l, buf := newBufferLogger(LevelInfo)
	l.ErrorErr("transfer failed", errors.New("recipient rejected"), map[string]any{"op": "execute_withdrawal"})
	l.ErrorErr("nil error", nil)

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "recipient rejected", entries[0].Fields["error"])
	assert.Equal(t, "execute_withdrawal", entries[0].Fields["op"])
	assert.Nil(t, entries[1].Fields)
}

func TestLogger_TextFormat(t *testing.T) {
	l, buf := newBufferLogger(LevelInfo)
	l.SetFormat(FormatText)
	l.Info("withdrawn", map[string]any{"b": 2, "a": 1})

	line := buf.String()
	assert.Contains(t, line, "INFO  withdrawn a=1 b=2")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLogger_Enabled(t *testing.T) {
	l := NewLogger(LevelWarn)
	assert.False(t, l.Enabled(LevelInfo))
	assert.True(t, l.Enabled(LevelError))
}

func TestLogger_ConcurrentChildren(t *testing.T) {
	l, buf := newBufferLogger(LevelInfo)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.WithFields(map[string]any{"n": i}).Info("tick")
		}(i)
	}
	wg.Wait()
	assert.Len(t, decodeLines(t, buf), 20)
}

func TestGlobal(t *testing.T) {
	old := Global()
	defer SetGlobal(old)

	l, buf := newBufferLogger(LevelDebug)
	SetGlobal(l)
	Debug("d")
	Info("i")
	Warn("w")
	Error("e")
	ErrorErr("ee", errors.New("x"))
	WithFields(map[string]any{"k": "v"}).Info("f")

	assert.Len(t, decodeLines(t, buf), 6)
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("dropped")
}
