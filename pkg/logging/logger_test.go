package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn")

	logger.Info("ignored")
	assert.Zero(t, buf.Len())

	logger.Warn("kept", "tenant_id", "t1")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "t1", line["tenant_id"])
}

func TestWithCarriesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "debug").With("provider", "twilio")

	logger.Debug("hello")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "twilio", line["provider"])
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, "INFO", parseLevel("verbose").String())
	assert.Equal(t, "ERROR", parseLevel(" Error ").String())
}
