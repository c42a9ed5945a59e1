package document

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// RasterizeFunc renders a diagram source to PNG bytes.
type RasterizeFunc func(ctx context.Context, source string) ([]byte, error)

// ConvertDiagramsToImages replaces every mermaid fence in markdown with a
// PNG data-URL image titled "Diagram N". A diagram that fails to render,
// or an empty one, stays in place as a code block. A leading ```markdown
// fence is removed. It returns the rewritten markdown and the number of
// diagrams converted; only context cancellation is an error.
func ConvertDiagramsToImages(ctx context.Context, markdown string, rasterize RasterizeFunc, logger *log.Logger) (string, int, error) {
	if logger == nil {
		logger = log.Default()
	}
	content := markdownFenceRe.ReplaceAllString(markdown, "")

	var b strings.Builder
	converted := 0
	cursor := 0
	for _, loc := range mermaidFenceRe.FindAllStringSubmatchIndex(content, -1) {
		start, end := loc[0], loc[1]
		source := strings.TrimSpace(content[loc[2]:loc[3]])
		preceding := content[cursor:start]
		b.WriteString(preceding)
		cursor = end

		if source == "" {
			b.WriteString(content[start:end])
			continue
		}
		png, err := rasterize(ctx, source)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", converted, ctxErr
			}
			logger.Warn("diagram kept as code", "diagram", converted+1, "error", err)
			b.WriteString(content[start:end])
			continue
		}

		image := fmt.Sprintf("![Diagram %d](%s)", converted+1, DataURL("image/png", png))
		if preceding != "" && !strings.HasSuffix(preceding, "\n") {
			image = "\n" + image
		}
		if end < len(content) && content[end] != '\n' {
			image += "\n"
		}
		b.WriteString(image)
		converted++
	}
	b.WriteString(content[cursor:])

	return strings.TrimLeft(b.String(), " \t\r\n"), converted, nil
}

// DataURL encodes data as a base64 data URL.
func DataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
