package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/docsmith/pkg/document"
	"github.com/matzehuels/docsmith/pkg/errors"
)

// docCommand groups the stored document subcommands.
func (c *CLI) docCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Manage the stored document",
		Long: `Import and inspect the document docsmith works on.

The document and its generation metadata live in the configured store
(by default ~/.config/docsmith/store).`,
	}

	cmd.AddCommand(c.docImportCommand())
	cmd.AddCommand(c.docShowCommand())

	return cmd
}

// importOpts holds the flags of "doc import".
type importOpts struct {
	visual   string // file with the visual content
	provider string
	model    string
	prompt   string
}

func (c *CLI) docImportCommand() *cobra.Command {
	var opts importOpts

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Store a generated document",
		Long: `Store a generated document, replacing the current one.

A .json file may hold the stored form ({"textContent", "visualContent"}) or
a generation service response ({"text_content", "visual_content"}). Any
other file is taken as markdown text content.

--provider, --model and --prompt record how the document was generated;
they are needed to repair its diagram.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			doc, err := parseImport(args[0], data)
			if err != nil {
				return err
			}
			if opts.visual != "" {
				visual, err := readInput(cmd.InOrStdin(), opts.visual)
				if err != nil {
					return err
				}
				doc.VisualContent = visual
			}
			return c.runImport(ctx, doc, opts)
		},
	}

	cmd.Flags().StringVar(&opts.visual, "visual", "", "file with the visual content (diagram source)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "generation provider, e.g. openai")
	cmd.Flags().StringVar(&opts.model, "model", "", "generation model")
	cmd.Flags().StringVar(&opts.prompt, "prompt", "", "prompt the document was generated from")

	return cmd
}

func (c *CLI) runImport(ctx context.Context, doc document.Document, opts importOpts) error {
	s, err := c.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if opts.provider != "" {
		if err := errors.ValidateProvider(opts.provider); err != nil {
			return err
		}
		meta := document.GenerationMetadata{Provider: opts.provider, Model: opts.model, Prompt: opts.prompt}
		if err := s.docs.SetMetadata(ctx, meta); err != nil {
			return err
		}
	}
	if err := s.docs.SaveDocument(ctx, doc); err != nil {
		return err
	}

	printSuccess("Imported document")
	printDetail("%d bytes of text, diagram: %s", len(doc.TextContent), yesNo(document.HasDiagram(doc.TextContent) || strings.TrimSpace(doc.VisualContent) != ""))
	return nil
}

// parseImport decodes a document file. name selects JSON decoding by
// extension.
func parseImport(name, data string) (document.Document, error) {
	if !strings.EqualFold(filepath.Ext(name), ".json") {
		return document.Document{TextContent: data}, nil
	}

	var raw struct {
		TextContent        string `json:"textContent"`
		VisualContent      string `json:"visualContent"`
		TextContentSnake   string `json:"text_content"`
		VisualContentSnake string `json:"visual_content"`
		Documentation      string `json:"documentation"`
	}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return document.Document{}, errors.Wrap(errors.ErrCodeParse, err, "decode %s", name)
	}
	doc := document.Document{
		TextContent:   firstNonEmpty(raw.TextContent, raw.TextContentSnake, raw.Documentation),
		VisualContent: firstNonEmpty(raw.VisualContent, raw.VisualContentSnake),
	}
	if doc.TextContent == "" && doc.VisualContent == "" {
		return doc, errors.New(errors.ErrCodeInvalidInput, "%s holds no text or visual content", name)
	}
	return doc, nil
}

func (c *CLI) docShowCommand() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored document and its metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := c.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.close()

			doc, err := s.docs.Document(ctx)
			if err != nil {
				return err
			}
			if raw {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}

			printKeyValue("Text", fmt.Sprintf("%d bytes", len(doc.TextContent)))
			printKeyValue("Visual", fmt.Sprintf("%d bytes", len(doc.VisualContent)))
			if meta, err := s.docs.Metadata(ctx); err == nil {
				printKeyValue("Provider", meta.Provider)
				if meta.Model != "" {
					printKeyValue("Model", meta.Model)
				}
			} else {
				printKeyValue("Provider", StyleDim.Render("none"))
			}
			if d, ok := document.ExtractDiagram(*doc); ok {
				printPanel("Diagram", d.Source)
			} else {
				printInfo("No diagram")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "json", false, "print the stored JSON")
	return cmd
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
