package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init("info", "json", &buf))

	log := New("model")
	log.Info().Str("version", "abc").Msg("model trained")
	log.Debug().Msg("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "model", entry["component"])
	assert.Equal(t, "abc", entry["version"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "model trained", entry["message"])
}

func TestInitConsole(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init("warn", "console", &buf))
	log := New("store")
	log.Warn().Msg("slow query")
	assert.Contains(t, buf.String(), "slow query")
	assert.Contains(t, buf.String(), "store")
}

func TestInitRejectsBadInput(t *testing.T) {
	assert.Error(t, Init("loud", "json"))
	assert.Error(t, Init("info", "xml"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "warn"},
		{"DEBUG", "debug"},
		{" error ", "error"},
	}
	for _, tt := range tests {
		lvl, err := ParseLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, lvl.String())
	}
}
