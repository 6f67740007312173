package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/veldtlabs/crewdash/internal/config"
	"github.com/veldtlabs/crewdash/internal/diagram"
	"github.com/veldtlabs/crewdash/internal/observability"
)

func newRenderCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "render [file]",
		Short: "Sanitize and render a diagram description (stdin when no file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var raw []byte
			if len(args) == 1 {
				raw, err = os.ReadFile(args[0])
			} else {
				raw, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read diagram text: %w", err)
			}

			engine := diagram.NewHTTPEngine(cfg.Diagram.EngineURL, cfg.Diagram.RenderTimeout)
			renderer := diagram.NewRenderer(engine, cfg.Diagram.Theme, cfg.Diagram.CacheTTL, observability.Logger())
			defer renderer.Close()

			result := renderer.Render(cmd.Context(), string(raw))
			switch result.Kind {
			case diagram.KindSVG:
				cmd.Println(result.Markup)
			case diagram.KindFallback:
				cmd.PrintErrln("engine rejected the description, sanitized source follows:")
				cmd.Println(result.RawText)
			}
			return nil
		},
	}
}
