package markdown

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const fence = "```"

var (
	headingRe   = regexp.MustCompile(`^(#{1,3})(?:\s+(.*))?$`)
	imageRe     = regexp.MustCompile(`^!\[([^\]]*)\]\(([^()\s]+)(?:\s+"[^"]*")?\)$`)
	unorderedRe = regexp.MustCompile(`^[-*+](?:\s+(.*))?$`)
	orderedRe   = regexp.MustCompile(`^(\d{1,9})[.)](?:\s+(.*))?$`)
)

// accumulator identifies which multi-line block is being collected.
type accumulator int

const (
	accNone accumulator = iota
	accParagraph
	accQuote
	accUnordered
	accOrdered
)

type parser struct {
	blocks []Block
	mode   accumulator
	lines  []string
	items  []OrderedItem
}

// Parse converts raw text into an ordered sequence of blocks.
func Parse(text string) []Block {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	p := &parser{}
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			p.flush()
			continue
		}

		if lang, ok := openingFence(trimmed); ok {
			p.flush()
			end := i + 1
			for end < len(lines) && !isClosingFence(lines[end]) {
				end++
			}
			// An unterminated fence runs to the end of input.
			p.emit(Code{Lang: lang, Content: strings.Join(lines[i+1:end], "\n")})
			i = end
			continue
		}

		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			p.flush()
			p.emit(Heading{Level: len(m[1]), Text: strings.TrimSpace(m[2])})
			continue
		}

		if m := imageRe.FindStringSubmatch(trimmed); m != nil {
			p.flush()
			p.emit(Image{Alt: m[1], Src: m[2]})
			continue
		}

		if strings.HasPrefix(trimmed, ">") {
			p.switchTo(accQuote)
			if body := strings.TrimSpace(strings.TrimPrefix(trimmed, ">")); body != "" {
				p.lines = append(p.lines, body)
			}
			continue
		}

		if m := unorderedRe.FindStringSubmatch(trimmed); m != nil {
			p.switchTo(accUnordered)
			p.lines = append(p.lines, strings.TrimSpace(m[1]))
			continue
		}

		if m := orderedRe.FindStringSubmatch(trimmed); m != nil {
			p.switchTo(accOrdered)
			idx, _ := strconv.Atoi(m[1])
			p.items = append(p.items, OrderedItem{Index: idx, Text: strings.TrimSpace(m[2])})
			continue
		}

		p.switchTo(accParagraph)
		p.lines = append(p.lines, trimmed)
	}
	p.flush()
	return p.blocks
}

// switchTo flushes the current accumulator when the next line belongs to a
// different block family.
func (p *parser) switchTo(mode accumulator) {
	if p.mode != mode {
		p.flush()
		p.mode = mode
	}
}

func (p *parser) emit(b Block) {
	p.blocks = append(p.blocks, b)
}

func (p *parser) flush() {
	switch p.mode {
	case accParagraph:
		p.emit(Paragraph{Text: strings.Join(p.lines, " ")})
	case accQuote:
		p.emit(Blockquote{Text: strings.Join(p.lines, " ")})
	case accUnordered:
		p.emit(UnorderedList{Items: p.lines})
	case accOrdered:
		p.emit(OrderedList{Items: p.items})
	}
	p.mode = accNone
	p.lines = nil
	p.items = nil
}

// openingFence reports whether line opens a fenced block and returns the
// info string.
func openingFence(line string) (string, bool) {
	if !strings.HasPrefix(line, fence) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimLeft(line, "`")), true
}

// isClosingFence reports whether line closes a fenced block: three or more
// backticks and nothing else.
func isClosingFence(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, fence) && strings.Trim(trimmed, "`") == ""
}

// Flatten serialises blocks back into the accepted subset. Parsing the
// result yields the same kinds, order, item counts and text.
func Flatten(blocks []Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch b := b.(type) {
		case Heading:
			parts = append(parts, strings.TrimSpace(strings.Repeat("#", b.Level)+" "+b.Text))
		case Paragraph:
			parts = append(parts, b.Text)
		case UnorderedList:
			lines := make([]string, len(b.Items))
			for i, item := range b.Items {
				lines[i] = strings.TrimSpace("- " + item)
			}
			parts = append(parts, strings.Join(lines, "\n"))
		case OrderedList:
			lines := make([]string, len(b.Items))
			for i, item := range b.Items {
				lines[i] = strings.TrimSpace(fmt.Sprintf("%d. %s", item.Index, item.Text))
			}
			parts = append(parts, strings.Join(lines, "\n"))
		case Code:
			if b.Content == "" {
				parts = append(parts, fence+b.Lang+"\n"+fence)
			} else {
				parts = append(parts, fence+b.Lang+"\n"+b.Content+"\n"+fence)
			}
		case Image:
			parts = append(parts, fmt.Sprintf("![%s](%s)", b.Alt, b.Src))
		case Blockquote:
			parts = append(parts, strings.TrimSpace("> "+b.Text))
		}
	}
	return strings.Join(parts, "\n\n")
}
