package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const dengueFixture = `
patientId: patient-7
startedAt: 2026-07-01T08:00:00Z
exposureHistory:
  mosquitoExposure: true
readings:
  - at: 2026-07-01T09:00:00Z
    temperatureF: 101.2
    timeOfDay: morning
    symptoms:
      headache: true
  - at: 2026-07-05T20:00:00Z
    temperatureF: 103.1
    timeOfDay: evening
    symptoms:
      bleeding: true
      bleedingSite: gums
    prediction:
      disease: dengue
      confidence: 0.81
      urgency: medium
  - at: 2026-07-05T21:00:00Z
    temperatureF: 130
`

func TestRunReplay(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runReplay(strings.NewReader(dengueFixture), &out))

	lines := strings.Split(out.String(), "\n")
	require.Contains(t, lines[0], "DANGER")

	first := strings.Fields(lines[1])
	require.Equal(t, []string{"1", "1", "101.2", "high", "none", "-", "-", "no"}, first)

	second := lines[2]
	require.Contains(t, second, "BLEEDING")
	require.Contains(t, second, "HIGH")
	require.Contains(t, second, "Critical phase")
	require.Contains(t, second, "high")

	require.Contains(t, lines[3], "rejected")
	require.Contains(t, out.String(), "day 1: mean 101.2 F over 1 reading(s)")
	require.Contains(t, out.String(), "day 5: mean 103.1 F over 1 reading(s)")
}

func TestRunReplayRequiresStart(t *testing.T) {
	err := runReplay(strings.NewReader("patientId: p\nreadings: []\n"), &bytes.Buffer{})
	require.ErrorContains(t, err, "startedAt")
}

func TestPhaseCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := phaseCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--disease", "Dengue", "--day", "9"})
	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "Recovery phase")

	out.Reset()
	cmd = phaseCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--disease", "typhoid", "--day", "2"})
	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "no phase model")
}

func TestClassifyCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := classifyCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--temp", "104.2"})
	require.NoError(t, cmd.Execute())
	require.Equal(t, "104.2 F: high\n", out.String())
}
