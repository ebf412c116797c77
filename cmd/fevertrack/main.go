package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yanqian/fevertrack/internal/domain/episode"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "fevertrack",
		Short:         "Fever episode tracking tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(phaseCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(alertsCmd())
	rootCmd.AddCommand(archiveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Print the severity band for a temperature",
		RunE: func(cmd *cobra.Command, args []string) error {
			temp, _ := cmd.Flags().GetFloat64("temp")
			if err := episode.ValidateVitals(&temp, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.1f F: %s\n", temp, episode.ClassifySeverity(temp))
			return nil
		},
	}
	cmd.Flags().Float64("temp", 0, "Temperature in Fahrenheit")
	_ = cmd.MarkFlagRequired("temp")
	return cmd
}

func phaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phase",
		Short: "Print phase guidance for a disease on a day of illness",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("disease")
			day, _ := cmd.Flags().GetInt("day")
			if day < 1 {
				return fmt.Errorf("day must be at least 1")
			}
			disease := episode.ParseDisease(raw)
			out := cmd.OutOrStdout()
			guidance, ok := episode.AdvisePhase(disease, day)
			if !ok {
				fmt.Fprintf(out, "%s day %d: no phase model\n", disease, day)
				return nil
			}
			fmt.Fprintf(out, "%s day %d: %s\n", disease, day, guidance.Phase)
			for _, note := range guidance.Notes {
				fmt.Fprintf(out, "  - %s\n", note)
			}
			return nil
		},
	}
	cmd.Flags().String("disease", string(episode.DiseaseDengue), "Predicted disease label")
	cmd.Flags().Int("day", 1, "Day of illness")
	return cmd
}

func joinSigns(signs []episode.DangerSign) string {
	if len(signs) == 0 {
		return "none"
	}
	names := make([]string, 0, len(signs))
	for _, s := range signs {
		names = append(names, string(s))
	}
	return strings.Join(names, ",")
}
