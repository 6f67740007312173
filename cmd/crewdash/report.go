package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veldtlabs/crewdash/internal/config"
	"github.com/veldtlabs/crewdash/internal/report"
)

func newReportCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "report <share-id>",
		Short: "Fetch a previously shared analysis summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client := report.NewClient(cfg.ReportBaseURL, nil)
			snapshot, err := client.Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(snapshot, "", "  ")
			if err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			cmd.Println(string(out))
			return nil
		},
	}
}
