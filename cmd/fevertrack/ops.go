package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yanqian/fevertrack/internal/domain/auth"
	"github.com/yanqian/fevertrack/internal/domain/episode"
	"github.com/yanqian/fevertrack/internal/infra/alertsink"
	"github.com/yanqian/fevertrack/internal/infra/archive"
	"github.com/yanqian/fevertrack/internal/infra/config"
	"github.com/yanqian/fevertrack/internal/infra/kv"
	"github.com/yanqian/fevertrack/pkg/logger"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed development token",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			role, _ := cmd.Flags().GetString("role")
			patientID, _ := cmd.Flags().GetString("patient")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			svc := auth.NewService(auth.Config{Secret: cfg.Auth.Secret, TokenTTL: cfg.Auth.TokenTTL}, logger.New())
			token, err := svc.IssueToken(cmd.Context(), auth.IssueRequest{
				Subject:   subject,
				Role:      auth.Role(role),
				PatientID: patientID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("subject", "", "Token subject")
	cmd.Flags().String("role", string(auth.RoleClinician), "patient or clinician")
	cmd.Flags().String("patient", "", "Patient id carried by patient tokens")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func alertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Inspect clinician alerts",
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print live alerts from the shared channel until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.Alerts.Redis.Enabled {
				return errors.New("alerts.redis is not enabled; live alerts are only shared through valkey")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := kv.Connect(ctx, cfg.Alerts.Redis.Addr)
			if err != nil {
				return fmt.Errorf("connect valkey: %w", err)
			}
			defer client.Close()

			sink := alertsink.NewValkeySink(client, cfg.Alerts.Prefix, cfg.Alerts.Channel, cfg.Alerts.MaxAlerts, logger.New())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "watching %s\n", cfg.Alerts.Channel)
			err = sink.Subscribe(ctx, func(ev episode.AlertEvent) {
				printAlert(out, ev)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.AddCommand(watchCmd)
	return cmd
}

func printAlert(w io.Writer, ev episode.AlertEvent) {
	fmt.Fprintf(w, "%s [%s] patient=%s episode=%s signs=%s: %s\n",
		ev.CreatedAt.Format("2006-01-02 15:04:05"), ev.Severity, ev.PatientID, ev.EpisodeID,
		joinSigns(ev.DangerSigns), ev.Message)
}

func archiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Read archived episodes",
	}

	showCmd := &cobra.Command{
		Use:   "show <patientId> <episodeId>",
		Short: "Print an archived episode record as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.Archive.Enabled {
				return errors.New("archive storage is not enabled")
			}
			log := logger.New()
			storage, err := archive.NewR2Storage(cfg.Archive.Endpoint, cfg.Archive.AccessKey, cfg.Archive.SecretKey, cfg.Archive.Bucket, cfg.Archive.Region, log)
			if err != nil {
				return err
			}
			rec, err := archive.NewArchiver(storage, log).Fetch(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
	cmd.AddCommand(showCmd)
	return cmd
}
