package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNewJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", false, WithOutput(&buf))

	log.Info().Str("table", "Users").Int("rows", 3).Dur("took", time.Millisecond).Msg("Fetched rows")
	log.Error().Err(errors.New("boom")).Msgf("Failed %d times", 2)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "Fetched rows", lines[0]["message"])
	assert.Equal(t, "Users", lines[0]["table"])
	assert.EqualValues(t, 3, lines[0]["rows"])
	assert.Contains(t, lines[0], "caller")
	assert.Equal(t, "boom", lines[1]["error"])
	assert.Equal(t, "Failed 2 times", lines[1]["message"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New("warn", false, WithOutput(&buf))
	log.Info().Msg("hidden")
	log.Debug().Msg("hidden")
	log.Warn().Msg("shown")
	assert.Len(t, decodeLines(t, &buf), 1)

	buf.Reset()
	New("not-a-level", false, WithOutput(&buf)).Debug().Msg("hidden at info")
	assert.Empty(t, buf.String())

	buf.Reset()
	New("disabled", false, WithOutput(&buf)).Error().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestPrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	New("info", true, WithOutput(&buf)).Info().Msg("Connected to MySQL database")
	assert.Contains(t, buf.String(), "Connected to MySQL database")
	assert.False(t, strings.HasPrefix(buf.String(), "{"))
}

func TestSensitiveFieldsAreMasked(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", false, WithOutput(&buf))

	log.Info().
		Str("password", "hunter2").
		Str("dsn", "postgres://app:hunter2@db:5432/shop").
		Interface("config", map[string]any{"host": "db", "Password": "hunter2"}).
		Msg("Opening connection")
	log.WithFields(map[string]any{"secret": "x", "database": "shop"}).Info().Msg("child")

	out := buf.String()
	assert.NotContains(t, out, "hunter2")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, DefaultMaskValue, lines[0]["password"])
	assert.Equal(t, "postgres://app:***@db:5432/shop", lines[0]["dsn"])
	assert.Equal(t, map[string]any{"host": "db", "Password": DefaultMaskValue}, lines[0]["config"])
	assert.Equal(t, DefaultMaskValue, lines[1]["secret"])
	assert.Equal(t, "shop", lines[1]["database"])
}

func TestCustomFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", false, WithOutput(&buf), WithFilter(&FilterConfig{SensitiveFields: []string{"ssn"}}))
	log.Info().Str("ssn", "123").Str("password", "visible").Msg("custom")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, DefaultMaskValue, lines[0]["ssn"])
	assert.Equal(t, "visible", lines[0]["password"])
}

func TestFilterValueShapes(t *testing.T) {
	f := NewSensitiveDataFilter(nil)

	assert.Equal(t, []any{"a", "b"}, f.FilterValue("names", []string{"a", "b"}))
	assert.Equal(t, []byte("raw"), f.FilterValue("payload", []byte("raw")))
	assert.Equal(t, DefaultMaskValue, f.FilterValue("token", 42))
	assert.Equal(t, map[string]any{"apiKey": DefaultMaskValue}, f.FilterValue("headers", map[string]string{"apiKey": "k"}))
	assert.Equal(t, "mysql://root@db/app", f.FilterString("dsn", "mysql://root@db/app"))
	assert.Equal(t, "", f.FilterString("password", ""))
}

func TestWithContextWithoutLogger(t *testing.T) {
	log := New("info", false)
	assert.Same(t, log, log.WithContext(context.Background()))
	assert.Same(t, log, log.WithContext("not a context"))
}

func TestDBCounter(t *testing.T) {
	ctx := WithDBCounter(context.Background())
	IncrementDBCounter(ctx)
	IncrementDBCounter(ctx)
	AddDBElapsed(ctx, 1500)
	assert.Equal(t, int64(2), GetDBCounter(ctx))
	assert.Equal(t, int64(1500), GetDBElapsed(ctx))

	plain := context.Background()
	IncrementDBCounter(plain)
	AddDBElapsed(plain, 10)
	assert.Zero(t, GetDBCounter(plain))
	assert.Zero(t, GetDBElapsed(plain))
}
