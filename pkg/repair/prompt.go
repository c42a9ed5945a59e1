package repair

import (
	"strings"
	"text/template"
)

var promptTmpl = template.Must(template.New("repair").Parse(`The following Mermaid diagram was generated as part of software documentation, but it fails to render because of a syntax error.
{{if .Context}}
The documentation was generated from this request:
{{.Context}}
{{end}}
Broken diagram:
` + "```mermaid" + `
{{.Source}}
` + "```" + `

Fix the syntax so the diagram renders with the Mermaid flowchart grammar. Keep the nodes, edges and labels the diagram already has. Quote any node label that contains brackets, parentheses or quotes.

Respond with only the corrected diagram in a single ` + "```mermaid" + ` code block and no other text.
`))

// BuildPrompt embeds the original generation prompt and the failing source
// in a repair request.
func BuildPrompt(originalPrompt, source string) string {
	var b strings.Builder
	// The template only reads two string fields and cannot fail.
	_ = promptTmpl.Execute(&b, struct{ Context, Source string }{
		Context: strings.TrimSpace(originalPrompt),
		Source:  strings.TrimSpace(source),
	})
	return b.String()
}
