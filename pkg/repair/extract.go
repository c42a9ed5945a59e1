package repair

import (
	"regexp"
	"strings"
)

// The whole info-string line after the opening fence is skipped.
var fencedDiagramRe = regexp.MustCompile("(?s)```[^\\n]*\\n(.*?)```")

// ExtractSource pulls a diagram source out of generated text: the body of
// the first fenced block (a ```mermaid fence is preferred over a bare
// one), else the trimmed text itself. ok is false when nothing usable is
// left.
func ExtractSource(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	if i := strings.Index(text, "```mermaid"); i >= 0 {
		if m := fencedDiagramRe.FindStringSubmatch(text[i:]); m != nil {
			src := strings.TrimSpace(m[1])
			return src, src != ""
		}
	}
	if m := fencedDiagramRe.FindStringSubmatch(text); m != nil {
		src := strings.TrimSpace(m[1])
		return src, src != ""
	}

	// An opening fence without a closing one.
	if rest, ok := strings.CutPrefix(text, "```mermaid"); ok {
		text = strings.TrimSpace(rest)
	}
	return text, text != ""
}
