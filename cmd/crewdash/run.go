package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/veldtlabs/crewdash/internal/config"
	"github.com/veldtlabs/crewdash/internal/display"
	"github.com/veldtlabs/crewdash/internal/observability"
	"github.com/veldtlabs/crewdash/internal/session"
	"github.com/veldtlabs/crewdash/internal/stream"
)

func newRunCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	var budget float64

	cmd := &cobra.Command{
		Use:   "run <owner/name>",
		Short: "Run a budgeted analysis and watch it live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := observability.Logger()

			subscriber := stream.NewSubscriber(cfg.StreamBaseURL, nil, logger)
			controller := session.NewController(cfg.Roster, subscriber, logger)

			if err := controller.Start(cmd.Context(), args[0], budget); err != nil {
				return err
			}
			defer controller.Stop()

			model := display.NewModel(controller.Updates())
			program := tea.NewProgram(model, tea.WithContext(cmd.Context()))
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("dashboard failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&budget, "budget", 1.5, "budget for this analysis run")
	return cmd
}
