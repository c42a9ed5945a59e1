// Package markdown parses the practical markdown subset used by generated
// documentation into an ordered sequence of blocks.
//
// The grammar is deliberately small: fenced code, ATX headings up to level
// three, unordered and ordered lists, standalone images, blockquotes and
// paragraphs. Inline formatting is kept verbatim in the block text.
//
//	blocks := markdown.Parse(text)
//	for _, b := range blocks {
//	    switch b := b.(type) {
//	    case markdown.Heading:
//	        fmt.Println(b.Level, b.Text)
//	    }
//	}
//
// Parse is a pure function of its input. It never fails: malformed input
// such as an unterminated fence degrades to a best-effort block.
package markdown

// Kind identifies a block variant.
type Kind string

// Block kinds.
const (
	KindHeading       Kind = "heading"
	KindParagraph     Kind = "paragraph"
	KindUnorderedList Kind = "unordered-list"
	KindOrderedList   Kind = "ordered-list"
	KindCode          Kind = "code"
	KindImage         Kind = "image"
	KindBlockquote    Kind = "blockquote"
)

// Block is one structurally distinct unit of parsed content.
// The set of implementations is closed to this package.
type Block interface {
	Kind() Kind
	block()
}

// Heading is an ATX heading. Level is 1 (largest) to 3.
type Heading struct {
	Level int
	Text  string
}

// Paragraph is a run of contiguous text lines joined with single spaces.
type Paragraph struct {
	Text string
}

// UnorderedList holds the items of a "-", "*" or "+" list.
type UnorderedList struct {
	Items []string
}

// OrderedItem is one numbered list item. Index is the number as written.
type OrderedItem struct {
	Index int
	Text  string
}

// OrderedList holds the items of a numbered list.
type OrderedList struct {
	Items []OrderedItem
}

// Code is a fenced code block. Lang is the info string after the opening
// fence; Content is the verbatim body without the fences.
type Code struct {
	Lang    string
	Content string
}

// Image is a standalone image line.
type Image struct {
	Alt string
	Src string
}

// Blockquote is a run of ">" lines with the prefix stripped.
type Blockquote struct {
	Text string
}

func (Heading) Kind() Kind       { return KindHeading }
func (Paragraph) Kind() Kind     { return KindParagraph }
func (UnorderedList) Kind() Kind { return KindUnorderedList }
func (OrderedList) Kind() Kind   { return KindOrderedList }
func (Code) Kind() Kind          { return KindCode }
func (Image) Kind() Kind         { return KindImage }
func (Blockquote) Kind() Kind    { return KindBlockquote }

func (Heading) block()       {}
func (Paragraph) block()     {}
func (UnorderedList) block() {}
func (OrderedList) block()   {}
func (Code) block()          {}
func (Image) block()         {}
func (Blockquote) block()    {}

// Stats counts blocks per kind.
func Stats(blocks []Block) map[Kind]int {
	counts := make(map[Kind]int)
	for _, b := range blocks {
		counts[b.Kind()]++
	}
	return counts
}
