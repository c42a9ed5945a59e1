package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/docsmith/pkg/events"
	"github.com/matzehuels/docsmith/pkg/store"
)

// watchCommand prints document updates as they are published.
func (c *CLI) watchCommand() *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print document update events",
		Long: `Print document update events until interrupted.

Events cross process boundaries only with the redis store backend; with
other backends only updates made by this process would be seen.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), apply)
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "apply each update to the stored document")
	return cmd
}

func (c *CLI) runWatch(ctx context.Context, apply bool) error {
	s, err := c.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if s.cfg.Store.Backend != store.BackendRedis {
		printWarning("Store backend %q does not share events between processes", s.cfg.Store.Backend)
	}

	var applier *events.Applier
	if apply {
		applier = events.NewApplier(s.docs, s.logger)
	}

	updates, cancel := s.bus.Subscribe(ctx)
	defer cancel()
	printInfo("Watching %s", events.Channel)

	for e := range updates {
		printEvent(e)
		if applier == nil {
			continue
		}
		applied, err := applier.Apply(ctx, e)
		if err != nil {
			printError("Apply %s: %v", e.ID, err)
			continue
		}
		if applied {
			printDetail("applied to stored document")
		}
	}
	return ctx.Err()
}

func printEvent(e events.DocumentUpdated) {
	printSuccess("%s %s", e.At.Local().Format("15:04:05"), StyleValue.Render(e.ID))
	printDetail("%s", fmt.Sprintf("previous: %d bytes, next: %d bytes", len(e.Previous), len(e.Next)))
}
