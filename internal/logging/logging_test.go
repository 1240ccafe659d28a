package logging

import (
	"bytes"
	"testing"

	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, FormatLogfmt, "warn")
	require.NoError(t, err)

	level.Info(logger).Log("msg", "hidden")
	level.Warn(logger).Log("msg", "shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "level=warn")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, FormatJSON, "debug")
	require.NoError(t, err)

	level.Debug(logger).Log("msg", "hello", "path", "/backgroundConfig")
	assert.Contains(t, buf.String(), `"path":"/backgroundConfig"`)
}

func TestUnknownOptions(t *testing.T) {
	_, err := NewWithWriter(&bytes.Buffer{}, "xml", "info")
	assert.Error(t, err)

	_, err = NewWithWriter(&bytes.Buffer{}, FormatLogfmt, "loud")
	assert.Error(t, err)
}
