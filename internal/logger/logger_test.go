package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheets/internal/logger"
)

func TestNew_WritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Config{Level: "debug", Output: &buf})
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cl := logger.Component(l, "store")
	cl.Info().Str("sheet", "abc").Msg("saved")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sheets", entry["service"])
	assert.Equal(t, "store", entry["component"])
	assert.Equal(t, "abc", entry["sheet"])
	assert.Equal(t, "saved", entry["message"])
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Config{Level: "chatty", Output: &buf})
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	l.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
	l.Info().Msg("shown")
	assert.NotZero(t, buf.Len())
}
