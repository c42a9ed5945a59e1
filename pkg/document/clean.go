package document

import (
	"regexp"
	"strings"
)

var (
	markdownFenceRe = regexp.MustCompile("(?i)^```markdown\\s*\\n")
	paragraphSepRe  = regexp.MustCompile(`\n{2,}`)
)

// preamblePrefixes and preamblePhrases mark chatty opening paragraphs that
// text generators put before the actual documentation.
var (
	preamblePrefixes = []string{
		"of course",
		"certainly",
		"absolutely",
		"sure",
		"this document provides comprehensive documentation",
	}
	preamblePhrases = []string{
		"as a software documentation expert",
		"as an ai language model",
	}
)

// Clean strips a leading ```markdown fence and drops preamble paragraphs
// from generated text.
func Clean(text string) string {
	if text == "" {
		return text
	}
	text = markdownFenceRe.ReplaceAllString(text, "")

	paragraphs := paragraphSepRe.Split(text, -1)
	for i := range paragraphs {
		paragraphs[i] = strings.TrimRight(paragraphs[i], " \t\r\n")
	}
	for len(paragraphs) > 0 && isPreamble(paragraphs[0]) {
		paragraphs = paragraphs[1:]
	}
	return strings.TrimLeft(strings.Join(paragraphs, "\n\n"), " \t\r\n")
}

func isPreamble(paragraph string) bool {
	p := strings.ToLower(strings.TrimSpace(paragraph))
	for _, prefix := range preamblePrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	for _, phrase := range preamblePhrases {
		if strings.Contains(p, phrase) {
			return true
		}
	}
	return false
}
