package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yanqian/fevertrack/internal/domain/episode"
)

// replayFixture is a recorded episode used to re-run the escalation rules offline.
type replayFixture struct {
	PatientID       string                  `yaml:"patientId"`
	StartedAt       time.Time               `yaml:"startedAt"`
	MedicalHistory  episode.MedicalHistory  `yaml:"medicalHistory"`
	ExposureHistory episode.ExposureHistory `yaml:"exposureHistory"`
	Readings        []replayReading         `yaml:"readings"`
}

type replayReading struct {
	episode.Reading `yaml:",inline"`

	At         time.Time              `yaml:"at"`
	Prediction *episode.RawPrediction `yaml:"prediction"`
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <fixture.yaml>",
		Short: "Run recorded readings through the escalation engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return runReplay(f, cmd.OutOrStdout())
		},
	}
}

func runReplay(r io.Reader, w io.Writer) error {
	var fx replayFixture
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil {
		return fmt.Errorf("decode fixture: %w", err)
	}
	if fx.StartedAt.IsZero() {
		return errors.New("fixture needs startedAt")
	}

	ep, err := episode.New(fx.PatientID, fx.StartedAt, fx.MedicalHistory, fx.ExposureHistory)
	if err != nil {
		return err
	}
	clock := fx.StartedAt
	engine := episode.NewEngine(func() time.Time { return clock })

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tDAY\tTEMP\tBAND\tDANGER\tURGENCY\tPHASE\tALERT")
	for i, rr := range fx.Readings {
		if !rr.At.IsZero() {
			clock = rr.At
		}
		var pred *episode.Prediction
		if rr.Prediction != nil {
			normalized, err := episode.NormalizePrediction(*rr.Prediction)
			if err != nil {
				return fmt.Errorf("reading %d: %w", i+1, err)
			}
			pred = &normalized
		}
		out, err := engine.Evaluate(ep, rr.Reading, pred)
		if err != nil {
			fmt.Fprintf(tw, "%d\t-\t-\t-\t-\t-\t-\trejected: %v\n", i+1, err)
			continue
		}
		phase := "-"
		if out.Status.PhaseGuidance != nil {
			phase = out.Status.PhaseGuidance.Phase
		}
		urgency := string(out.Status.EffectiveUrgency)
		if urgency == "" {
			urgency = "-"
		}
		alert := "no"
		if out.Alert != nil {
			alert = string(out.Alert.Severity)
		}
		fmt.Fprintf(tw, "%d\t%d\t%.1f\t%s\t%s\t%s\t%s\t%s\n",
			i+1, out.Status.CurrentDay, out.Snapshot.TemperatureF, out.Status.SeverityBand,
			joinSigns(out.Status.DangerSigns), urgency, phase, alert)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	for _, point := range ep.DailyTrend() {
		fmt.Fprintf(w, "day %d: mean %.1f F over %d reading(s)\n", point.Day, point.MeanTempF, point.ReadingCount)
	}
	return nil
}
