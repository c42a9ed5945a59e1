// Package document models the generated documentation record and the text
// operations performed on it: locating the diagram, cleaning model
// preambles, swapping a repaired diagram block in place, and inlining
// rendered diagrams for export.
package document

import (
	"regexp"
	"strings"
)

// Document is the persisted result of a documentation run.
type Document struct {
	TextContent   string `json:"textContent"`
	VisualContent string `json:"visualContent"`
}

// GenerationMetadata records how a document was generated, so a failing
// diagram can be regenerated with the same provider and context.
type GenerationMetadata struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Prompt   string `json:"prompt"`
}

// Diagram locates the diagram a document displays.
type Diagram struct {
	// Source is the diagram text without fence markers.
	Source string
	// Block is the exact text that holds the diagram in the document: the
	// fenced block in TextContent, or the whole VisualContent.
	Block string
	// InText reports whether Block was found in TextContent.
	InText bool
}

var mermaidFenceRe = regexp.MustCompile("```mermaid\\s*[\\r\\n]+([\\s\\S]*?)```")

// ExtractDiagram returns the first mermaid fence in TextContent or, failing
// that, the VisualContent with any fence stripped. ok is false when
// neither holds a diagram.
func ExtractDiagram(doc Document) (Diagram, bool) {
	if m := mermaidFenceRe.FindStringSubmatch(doc.TextContent); m != nil {
		if src := strings.TrimSpace(m[1]); src != "" {
			return Diagram{Source: src, Block: m[0], InText: true}, true
		}
	}

	visual := doc.VisualContent
	if strings.TrimSpace(visual) == "" {
		return Diagram{}, false
	}
	src := StripFence(visual)
	if src == "" {
		return Diagram{}, false
	}
	return Diagram{Source: src, Block: visual}, true
}

// StripFence returns the body of the first mermaid fence in s, or s
// trimmed when it holds no such fence. A lone opening fence without a
// closing one is dropped.
func StripFence(s string) string {
	if m := mermaidFenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	t := strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(t, "```mermaid"); ok {
		t = strings.TrimSpace(rest)
	}
	return strings.TrimSpace(strings.TrimSuffix(t, "```"))
}

// Fence wraps a diagram source in a mermaid code fence.
func Fence(source string) string {
	return "```mermaid\n" + strings.TrimSpace(source) + "\n```"
}

// ReplaceBlock replaces the first literal occurrence of previous in text
// with next. ok is false, and text is returned unchanged, when previous
// is empty or absent.
func ReplaceBlock(text, previous, next string) (string, bool) {
	if previous == "" {
		return text, false
	}
	i := strings.Index(text, previous)
	if i < 0 {
		return text, false
	}
	return text[:i] + next + text[i+len(previous):], true
}

// ReplaceDiagram swaps the diagram d for a new source, in whichever field
// holds it. It returns the updated document and the fenced block that
// replaced d.Block.
func ReplaceDiagram(doc Document, d Diagram, source string) (Document, string, bool) {
	next := Fence(source)
	if d.InText {
		text, ok := ReplaceBlock(doc.TextContent, d.Block, next)
		if !ok {
			return doc, next, false
		}
		doc.TextContent = text
		return doc, next, true
	}
	if doc.VisualContent != d.Block {
		return doc, next, false
	}
	doc.VisualContent = next
	return doc, next, true
}

// HasDiagram reports whether the text holds at least one mermaid fence.
func HasDiagram(text string) bool {
	return mermaidFenceRe.MatchString(text)
}

// StripDiagrams removes every mermaid fence from text.
func StripDiagrams(text string) string {
	return mermaidFenceRe.ReplaceAllString(text, "")
}
