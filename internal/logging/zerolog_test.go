package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestZerolog(t *testing.T, level zerolog.Level) (*ZerologLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return NewZerologLogger(zerolog.New(&buf).Level(level)), &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestZerologLogger_LevelsAndFields(t *testing.T) {
	log, buf := newTestZerolog(t, zerolog.DebugLevel)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", "two")
	log.Warn(ctx, "wrn")
	log.Error(ctx, "err", "error", errors.New("boom"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 4)

	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, "dbg", lines[0]["message"])
	assert.EqualValues(t, 1, lines[0]["a"])

	assert.Equal(t, "info", lines[1]["level"])
	assert.Equal(t, "two", lines[1]["b"])

	assert.Equal(t, "warn", lines[2]["level"])

	assert.Equal(t, "error", lines[3]["level"])
	assert.Equal(t, "boom", lines[3]["error"])
}

func TestZerologLogger_RespectsLevel(t *testing.T) {
	log, buf := newTestZerolog(t, zerolog.WarnLevel)
	ctx := context.Background()

	log.Debug(ctx, "hidden")
	log.Info(ctx, "hidden")
	log.Warn(ctx, "shown")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
}

func TestZerologLogger_WithAndOddArgs(t *testing.T) {
	log, buf := newTestZerolog(t, zerolog.InfoLevel)

	child := log.With("module", "sync")
	child.Info(context.Background(), "hello", "dangling")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "sync", lines[0]["module"])
	assert.Equal(t, "!MISSING", lines[0]["dangling"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("whatever"))
}

func TestNop_DoesNothing(t *testing.T) {
	var l Logger = Nop{}
	l.With("a", 1).Info(context.Background(), "x")
}
