package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/docsmith/pkg/document"
	"github.com/matzehuels/docsmith/pkg/errors"
	"github.com/matzehuels/docsmith/pkg/export"
	"github.com/matzehuels/docsmith/pkg/view"
)

// exportOpts holds the command-line flags for the export command.
type exportOpts struct {
	formats string // comma separated: md, pdf
	dir     string // output directory
	output  string // explicit output path (single format only)
	repair  bool   // render and repair the diagram before exporting
}

// exportCommand writes the document as markdown and/or PDF.
func (c *CLI) exportCommand() *cobra.Command {
	opts := exportOpts{formats: "md,pdf", dir: "."}

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export the document as markdown and PDF",
		Long: `Export the document as documentation.md and/or documentation.pdf.

Diagrams are inlined as PNG images; one that does not render stays in the
output as a code block. Without a file argument the stored document is
exported.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formats, err := export.ParseFormats(opts.formats)
			if err != nil {
				return err
			}
			if opts.output != "" && len(formats) > 1 {
				return errors.New(errors.ErrCodeInvalidInput, "--output needs exactly one --format")
			}
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return c.runExport(cmd.Context(), cmd.InOrStdin(), input, formats, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.formats, "format", "f", opts.formats, "export format(s): md, pdf (comma-separated)")
	cmd.Flags().StringVarP(&opts.dir, "dir", "d", opts.dir, "output directory")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format only)")
	cmd.Flags().BoolVar(&opts.repair, "repair", false, "repair a broken diagram before exporting (stored document only)")

	return cmd
}

func (c *CLI) runExport(ctx context.Context, stdin io.Reader, input string, formats []string, opts exportOpts) error {
	s, err := c.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	doc, err := c.loadExportDocument(ctx, s, stdin, input, opts.repair)
	if err != nil {
		return err
	}

	runner, err := s.exporter()
	if err != nil {
		return err
	}

	prog := newProgress(s.logger)
	var paths []string
	for _, format := range formats {
		spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Exporting %s...", format))
		spinner.Start()
		out, err := runner.Export(ctx, format, doc)
		spinner.Stop()
		if err != nil {
			return err
		}

		path := opts.output
		if path == "" {
			path = filepath.Join(opts.dir, export.DefaultFileNames[format])
		}
		if err := export.WriteFile(path, out.Data); err != nil {
			return err
		}
		paths = append(paths, path)
		if out.Pages > 0 {
			printDetail("%s: %d pages, %d diagrams", format, out.Pages, out.Diagrams)
		}
	}

	prog.done(fmt.Sprintf("Exported %d file(s)", len(paths)))
	for _, p := range paths {
		printFile(p)
	}
	return nil
}

// loadExportDocument returns the document to export: the given file as
// text content, or the stored document, optionally after a render and
// repair pass.
func (c *CLI) loadExportDocument(ctx context.Context, s *session, stdin io.Reader, input string, repairFirst bool) (document.Document, error) {
	if input != "" {
		text, err := readInput(stdin, input)
		if err != nil {
			return document.Document{}, err
		}
		return document.Document{TextContent: text}, nil
	}

	doc, err := s.docs.Document(ctx)
	if err != nil {
		return document.Document{}, err
	}
	if !repairFirst {
		return *doc, nil
	}

	v := view.New(s.renderer, s.coordinator(terminalNotifier{}), s.logger)
	defer v.Close()
	v.SetDocument(*doc)
	if st := v.Render(ctx); st.Status == view.StatusFailed {
		printWarning("Diagram could not be rendered; exporting it as code")
	}

	// A successful repair rewrote the stored document.
	doc, err = s.docs.Document(ctx)
	if err != nil {
		return document.Document{}, err
	}
	return *doc, nil
}
