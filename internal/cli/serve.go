package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/docsmith/pkg/events"
	"github.com/matzehuels/docsmith/pkg/preview"
	"github.com/matzehuels/docsmith/pkg/repair"
	"github.com/matzehuels/docsmith/pkg/view"
)

// serveCommand runs the preview server.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a live preview of the stored document",
		Long: `Serve a live preview of the stored document.

The page shows the document as HTML with its diagram below. A diagram that
fails to render is repaired once through the generation service; the
"Retry repair" button allows another attempt. With the redis store backend,
updates published by other instances are applied to the stored document.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.Config.Serve.Addr
			}
			return c.runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default from config, localhost:8080)")
	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string) error {
	s, err := c.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	exporter, err := s.exporter()
	if err != nil {
		return err
	}
	coord := s.coordinator(repair.LogNotifier{Logger: s.logger})
	v := view.New(s.renderer, coord, s.logger)
	defer v.Close()

	if _, ok := s.bus.(*events.RedisBus); ok {
		go events.NewApplier(s.docs, s.logger).Run(ctx, s.bus)
	}

	printSuccess("Preview at http://%s", addr)
	return preview.New(s.docs, v, exporter, s.logger).ListenAndServe(ctx, addr)
}
