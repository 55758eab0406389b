package jsonlog

import (
	"bytes"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelInfo)

	logger.PrintInfo("starting server", map[string]string{"addr": ":4000"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "starting server", line["message"])
	assert.Equal(t, map[string]any{"addr": ":4000"}, line["properties"])
	assert.NotEmpty(t, line["time"])
	assert.NotContains(t, line, "trace")
}

func TestMinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelError)

	logger.PrintInfo("dropped", nil)
	assert.Zero(t, buf.Len())

	logger.PrintError(errors.New("boom"), nil)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "boom", line["message"])
	assert.Contains(t, line, "trace")
}

func TestPrintFatalExits(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelInfo)

	code := -1
	logger.exit = func(c int) { code = c }
	logger.PrintFatal(errors.New("no database"), nil)

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), `"level":"FATAL"`)
}

func TestWriteLogsAsError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelInfo)

	n, err := logger.Write([]byte("http: TLS handshake error\n"))
	require.NoError(t, err)
	assert.Equal(t, 26, n)
	assert.Contains(t, buf.String(), `"message":"http: TLS handshake error"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelOff, ParseLevel("off"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}
