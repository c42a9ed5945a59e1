// Package export turns a generated document into a markdown file and a
// paginated PDF, with diagrams inlined as PNG images.
//
// Both exports share one preparation step: the text is cleaned of model
// preambles and every mermaid fence is rasterized and replaced by a
// data-URL image. A diagram that fails to render stays in the output as
// a code block. When the text carries no diagram of its own, the
// document's visual content is appended under a "Visual Representation"
// heading.
//
//	runner := export.NewRunner(renderer, typeset.DefaultLayout(), logger)
//	md, err := runner.Markdown(ctx, doc)
//	pdf, err := runner.PDF(ctx, doc)
//	err = export.WriteFile("documentation.pdf", pdf.Data)
package export

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/docsmith/pkg/errors"
)

// Format constants for export formats.
const (
	FormatMarkdown = "md"
	FormatPDF      = "pdf"
)

// ValidFormats is the set of supported export formats.
var ValidFormats = map[string]bool{
	FormatMarkdown: true,
	FormatPDF:      true,
}

// Default output file names per format.
var DefaultFileNames = map[string]string{
	FormatMarkdown: "documentation.md",
	FormatPDF:      "documentation.pdf",
}

// DefaultTitle heads every PDF export.
const DefaultTitle = "Project Documentation"

// visualHeading introduces the appended visual content.
const visualHeading = "## Visual Representation"

// ParseFormats splits a comma separated list such as "md,pdf" and rejects
// unknown entries. Duplicates are dropped.
func ParseFormats(list string) ([]string, error) {
	var formats []string
	seen := make(map[string]bool)
	for _, f := range strings.Split(list, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "markdown" {
			f = FormatMarkdown
		}
		if f == "" || seen[f] {
			continue
		}
		if !ValidFormats[f] {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown export format %q (must be md or pdf)", f)
		}
		seen[f] = true
		formats = append(formats, f)
	}
	if len(formats) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "no export format given")
	}
	return formats, nil
}

// WriteFile writes an export to path, creating parent directories.
// Failures are EXPORT_IO_ERROR.
func WriteFile(path string, data []byte) error {
	if err := errors.ValidateOutputPath(path); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(errors.ErrCodeExportIO, err, "create %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeExportIO, err, "write %s", path)
	}
	return nil
}
