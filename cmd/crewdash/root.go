package main

import (
	"github.com/spf13/cobra"

	"github.com/veldtlabs/crewdash/internal/config"
	"github.com/veldtlabs/crewdash/internal/diagram"
	"github.com/veldtlabs/crewdash/internal/observability"
)

const version = "0.1.0"

// Execute runs the crewdash CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:           "crewdash",
		Short:         "crewdash: budgeted multi-worker analysis dashboard",
		Long:          "crewdash runs a budgeted analysis of a subject through a fixed roster of workers, streams their progress into a live terminal dashboard, and renders worker-produced diagrams safely.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	loadConfig := func() (config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Debug = cfg.Debug || debug
		observability.Setup(cfg.Debug)
		diagram.ConfigureOnce(diagram.EngineConfig{Theme: cfg.Diagram.Theme})
		return cfg, nil
	}

	rootCmd.AddCommand(
		newRunCmd(loadConfig),
		newRenderCmd(loadConfig),
		newReportCmd(loadConfig),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the crewdash version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("crewdash v%s\n", version)
		},
	}
}
