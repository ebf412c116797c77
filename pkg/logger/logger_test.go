package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildJSON(t *testing.T) {
	var buf bytes.Buffer
	build(&buf, "warn", "").Info("hidden")
	require.Zero(t, buf.Len())

	build(&buf, "debug", "json").Debug("reading logged", "episodeId", "ep-1")
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "fevertrack", record["service"])
	require.Equal(t, "ep-1", record["episodeId"])
}

func TestBuildText(t *testing.T) {
	var buf bytes.Buffer
	build(&buf, "", "TEXT").Info("started")
	require.Contains(t, buf.String(), "service=fevertrack")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	require.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
