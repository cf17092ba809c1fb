package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected zerolog.Level
	}{
		{"debug", "debug", zerolog.DebugLevel},
		{"info", "info", zerolog.InfoLevel},
		{"warn", "warn", zerolog.WarnLevel},
		{"warning alias", "WARNING", zerolog.WarnLevel},
		{"error", "error", zerolog.ErrorLevel},
		{"unknown defaults to info", "verbose", zerolog.InfoLevel},
		{"empty defaults to info", "", zerolog.InfoLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseLevel(tc.input))
		})
	}
}

func TestNewWithWriter_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "info"}, &buf)

	l.Info().Str("symbol", "INFY.NS").Msg("price refreshed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "price refreshed", entry["message"])
	assert.Equal(t, "INFY.NS", entry["symbol"])
	assert.Equal(t, "holdings", entry["app"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "caller")
}

func TestNewWithWriter_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "error"}, &buf)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	l.Info().Msg("should be filtered")
	assert.Empty(t, buf.String())

	l.Error().Msg("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestNewWithWriter_Pretty(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Level: "info", Pretty: true}, &buf)

	l.Info().Msg("pretty message")

	out := buf.String()
	assert.Contains(t, out, "pretty message")
	assert.NotContains(t, out, `"message"`)
}

func TestSetGlobalLogger(t *testing.T) {
	original := log.Logger
	defer func() { log.Logger = original }()

	var buf bytes.Buffer
	SetGlobalLogger(zerolog.New(&buf))

	log.Info().Msg("global")
	assert.Contains(t, buf.String(), "global")
}
