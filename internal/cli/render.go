package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/docsmith/pkg/diagram"
	"github.com/matzehuels/docsmith/pkg/document"
	"github.com/matzehuels/docsmith/pkg/errors"
	"github.com/matzehuels/docsmith/pkg/view"
)

const (
	formatSVG = "svg"
	formatPNG = "png"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output string // output file path
	format string // "svg" or "png"; inferred from output when empty
	doc    bool   // render the stored document's diagram, repairing it if needed
}

// renderCommand renders one diagram to SVG or PNG.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a flowchart diagram to SVG or PNG",
		Long: `Render a flowchart diagram to SVG or PNG.

The input is a diagram source or a markdown file holding a mermaid code
block; "-" or no argument reads stdin. With --doc the diagram of the stored
document is rendered instead, and repaired through the generation service
if it fails to parse.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := resolveFormat(opts.format, opts.output)
			if err != nil {
				return err
			}
			opts.format = format
			if opts.output == "" {
				opts.output = "diagram." + format
			}
			if opts.doc {
				return c.runRenderDocument(cmd.Context(), opts)
			}
			input := "-"
			if len(args) == 1 {
				input = args[0]
			}
			return c.runRenderSource(cmd.Context(), cmd.InOrStdin(), input, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default diagram.<format>)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: svg (default), png")
	cmd.Flags().BoolVar(&opts.doc, "doc", false, "render the stored document's diagram")

	return cmd
}

func (c *CLI) runRenderSource(ctx context.Context, stdin io.Reader, input string, opts renderOpts) error {
	text, err := readInput(stdin, input)
	if err != nil {
		return err
	}
	source := document.StripFence(text)

	s, err := c.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	prog := newProgress(s.logger)
	res, err := s.renderer.Render(ctx, source)
	if err != nil {
		printPanel("Diagram could not be rendered", diagram.Sanitize(source))
		return err
	}
	if res.Sanitized {
		printInfo("Rendered after quoting node labels")
	}

	data := res.SVG
	if opts.format == formatPNG {
		if data, _, _, err = s.renderer.RasterizeSVG(ctx, res.SVG); err != nil {
			return err
		}
	}
	if err := writeOutput(opts.output, data); err != nil {
		return err
	}
	prog.done("Rendered diagram")
	printFile(opts.output)
	return nil
}

func (c *CLI) runRenderDocument(ctx context.Context, opts renderOpts) error {
	s, err := c.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	doc, err := s.docs.Document(ctx)
	if err != nil {
		return err
	}

	v := view.New(s.renderer, s.coordinator(terminalNotifier{}), s.logger)
	defer v.Close()
	v.SetDocument(*doc)

	spinner := newSpinnerWithContext(ctx, "Rendering diagram...")
	spinner.Start()
	st := v.Render(ctx)
	spinner.Stop()

	switch st.Status {
	case view.StatusEmpty:
		printInfo("%s", st.Message)
		return nil
	case view.StatusFailed:
		printPanel("Diagram could not be rendered", st.Source)
		if st.Err != nil {
			return st.Err
		}
		return errors.New(errors.ErrCodeRender, "diagram could not be rendered")
	}

	data := st.SVG
	if opts.format == formatPNG {
		if len(st.PNG) == 0 {
			return errors.Wrap(errors.ErrCodeRender, st.Err, "rasterize diagram")
		}
		data = st.PNG
	}
	if err := writeOutput(opts.output, data); err != nil {
		return err
	}
	printSuccess("Rendered diagram (%s)", st.Repair.Phase)
	printFile(opts.output)
	return nil
}

// sanitizeCommand prints a diagram source with its node labels quoted.
func (c *CLI) sanitizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sanitize [file]",
		Short: "Quote bracketed node labels in a diagram source",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := "-"
			if len(args) == 1 {
				input = args[0]
			}
			text, err := readInput(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), diagram.Sanitize(document.StripFence(text)))
			return nil
		},
	}
}

// =============================================================================
// Helpers
// =============================================================================

// resolveFormat returns format, or the one implied by the output
// extension, defaulting to svg.
func resolveFormat(format, output string) (string, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
	}
	switch format {
	case "":
		return formatSVG, nil
	case formatSVG, formatPNG:
		return format, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q (must be svg or png)", format)
	}
}

// readInput reads path, or stdin when path is "-".
func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "read stdin")
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", path)
	}
	return string(data), nil
}

// writeOutput writes data to path after validating it.
func writeOutput(path string, data []byte) error {
	if err := errors.ValidateOutputPath(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeExportIO, err, "write %s", path)
	}
	return nil
}
