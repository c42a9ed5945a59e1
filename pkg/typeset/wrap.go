package typeset

import (
	"strings"
	"unicode/utf8"

	"github.com/mitchellh/go-wordwrap"
)

// measureFunc returns the rendered width of s in the current font.
type measureFunc func(s string) float64

// wrapText breaks s into lines no wider than width. Explicit newlines are
// kept. Words wider than a line are split. The result always has at least
// one line.
func wrapText(s string, width float64, measure measureFunc) []string {
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		current := ""
		for _, word := range strings.Fields(para) {
			candidate := word
			if current != "" {
				candidate = current + " " + word
			}
			if measure(candidate) <= width {
				current = candidate
				continue
			}
			if current != "" {
				lines = append(lines, current)
			}
			current = word
			for len(current) > 1 && measure(current) > width {
				cut := fitPrefix(current, width, measure)
				lines = append(lines, current[:cut])
				current = current[cut:]
			}
		}
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// fitPrefix returns the length of the longest prefix of s that fits in
// width, never less than one byte. Text is single-byte encoded at this
// point, so byte offsets are character offsets.
func fitPrefix(s string, width float64, measure measureFunc) int {
	n := 1
	for n < len(s) && measure(s[:n+1]) <= width {
		n++
	}
	return n
}

// wrapCode breaks monospace source into lines of at most cols characters.
// src is UTF-8 and columns are counted in runes; callers translate each
// line to the font encoding afterwards. The same result feeds both the
// background sizing and the drawing of a code block.
func wrapCode(src string, cols int) []string {
	if cols < 1 {
		cols = 1
	}
	src = strings.ReplaceAll(src, "\t", "    ")

	var lines []string
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimRight(line, " \r")
		if utf8.RuneCountInString(line) <= cols {
			lines = append(lines, line)
			continue
		}
		for _, piece := range strings.Split(wordwrap.WrapString(line, uint(cols)), "\n") {
			lines = append(lines, splitRunes(piece, cols)...)
		}
	}
	return lines
}

// splitRunes cuts s into pieces of at most n runes.
func splitRunes(s string, n int) []string {
	var out []string
	for utf8.RuneCountInString(s) > n {
		cut, i := 0, 0
		for cut = range s {
			if i == n {
				break
			}
			i++
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	return append(out, s)
}
