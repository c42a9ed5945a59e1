package diagram

import (
	"regexp"
	"strings"
)

var (
	// id[[label]]
	subroutineNodeRe = regexp.MustCompile(`(\b[\w.-]+)\[\[([^\]]*?)\]\]`)
	// id[label]; matches whose label starts with "[" are skipped by the scan
	boxNodeRe = regexp.MustCompile(`(\b[\w.-]+)\[([^\]]*?)\]`)
)

// Sanitize quotes the labels of bracketed nodes so that reserved characters
// inside them stop breaking the flowchart grammar. Double-bracket nodes are
// rewritten first, then single-bracket nodes that were not part of a
// double-bracket token.
//
// Inside each label, "[" and "]" become "(" and ")", unescaped quotes are
// escaped, and angle brackets are HTML-escaped. The label is then wrapped
// in double quotes; an already quoted label is unwrapped first, so
// Sanitize(Sanitize(s)) == Sanitize(s).
//
// Sanitize is a best-effort heuristic for one class of failures. It does
// not repair arbitrary syntax errors.
func Sanitize(source string) string {
	if source == "" {
		return source
	}
	out := replaceNodes(source, subroutineNodeRe, "[[", "]]", false)
	return replaceNodes(out, boxNodeRe, "[", "]", true)
}

// replaceNodes rewrites every labelled node matched by re. With
// skipNested, a match whose label begins with "[" belongs to a
// double-bracket token and is left alone; scanning resumes just after its
// first bracket.
func replaceNodes(s string, re *regexp.Regexp, open, close string, skipNested bool) string {
	var b strings.Builder
	pos := 0
	for pos < len(s) {
		loc := re.FindStringSubmatchIndex(s[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		idEnd := pos + loc[3]
		label := s[pos+loc[4] : pos+loc[5]]

		if skipNested && strings.HasPrefix(label, "[") {
			b.WriteString(s[pos : idEnd+1])
			pos = idEnd + 1
			continue
		}

		b.WriteString(s[pos:start])
		b.WriteString(s[start:idEnd])
		b.WriteString(open)
		b.WriteString(quoteLabel(label))
		b.WriteString(close)
		pos = end
	}
	b.WriteString(s[pos:])
	return b.String()
}

// quoteLabel trims, unwraps and re-wraps a label in double quotes.
func quoteLabel(label string) string {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return `""`
	}
	if len(trimmed) >= 2 && trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"' {
		trimmed = trimmed[1 : len(trimmed)-1]
	}
	return `"` + sanitizeLabel(trimmed) + `"`
}

var labelReplacer = strings.NewReplacer("[", "(", "]", ")", "<", "&lt;", ">", "&gt;")

func sanitizeLabel(label string) string {
	return escapeQuotes(labelReplacer.Replace(label))
}

// escapeQuotes backslash-escapes every double quote that is not already
// escaped. A quote is escaped when an odd number of backslashes precede it.
func escapeQuotes(s string) string {
	if !strings.Contains(s, `"`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	backslashes := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			backslashes++
		case '"':
			if backslashes%2 == 0 {
				b.WriteByte('\\')
			}
			backslashes = 0
		default:
			backslashes = 0
		}
		b.WriteByte(c)
	}
	return b.String()
}
