package typeset

import (
	"fmt"
)

// ptToMM converts typographic points to millimetres.
const ptToMM = 25.4 / 72

// Layout describes page geometry and typographic sizes. Lengths are in
// millimetres, font sizes in points.
type Layout struct {
	PageWidth    float64
	PageHeight   float64
	MarginLeft   float64
	MarginRight  float64
	MarginTop    float64
	MarginBottom float64

	BodySize    float64 // paragraph and list text
	CodeSize    float64 // monospace code blocks
	CaptionSize float64 // image captions and footer
	LineSpacing float64 // line height as a multiple of the font size

	BlockGap    float64 // gap after every text block
	ListGap     float64 // extra gap after a whole list
	ListIndent  float64 // indent of list item text; markers sit inside it
	QuoteIndent float64 // indent of blockquote text
	CodePadding float64 // padding inside the code background
	ImageDPI    float64 // resolution used to turn pixels into millimetres
}

// A4 and Letter page sizes in millimetres.
var (
	PageA4     = [2]float64{210, 297}
	PageLetter = [2]float64{215.9, 279.4}
)

// DefaultLayout returns an A4 portrait layout with 20mm margins.
func DefaultLayout() Layout {
	return Layout{
		PageWidth:    PageA4[0],
		PageHeight:   PageA4[1],
		MarginLeft:   20,
		MarginRight:  20,
		MarginTop:    20,
		MarginBottom: 20,
		BodySize:     11,
		CodeSize:     9,
		CaptionSize:  9,
		LineSpacing:  1.4,
		BlockGap:     3,
		ListGap:      2,
		ListIndent:   7,
		QuoteIndent:  8,
		CodePadding:  3,
		ImageDPI:     96,
	}
}

// PageSize returns the width and height for a named page size
// ("a4" or "letter").
func PageSize(name string) (float64, float64, error) {
	switch name {
	case "", "a4", "A4":
		return PageA4[0], PageA4[1], nil
	case "letter", "Letter":
		return PageLetter[0], PageLetter[1], nil
	default:
		return 0, 0, fmt.Errorf("unknown page size: %q (must be 'a4' or 'letter')", name)
	}
}

// Validate checks that the layout leaves room for content.
func (l Layout) Validate() error {
	if l.PageWidth <= 0 || l.PageHeight <= 0 {
		return fmt.Errorf("page size must be positive (got %.1fx%.1f)", l.PageWidth, l.PageHeight)
	}
	if l.ContentWidth() <= l.ListIndent || l.ContentWidth() <= l.QuoteIndent {
		return fmt.Errorf("content width %.1fmm leaves no room for indented text", l.ContentWidth())
	}
	if l.ContentHeight() <= 0 {
		return fmt.Errorf("vertical margins exceed page height")
	}
	if l.BodySize <= 0 || l.CodeSize <= 0 || l.CaptionSize <= 0 {
		return fmt.Errorf("font sizes must be positive")
	}
	if l.LineSpacing < 1 {
		return fmt.Errorf("line spacing must be at least 1 (got %.2f)", l.LineSpacing)
	}
	if l.ImageDPI <= 0 {
		return fmt.Errorf("image DPI must be positive")
	}
	return nil
}

// ContentWidth is the horizontal space between the margins.
func (l Layout) ContentWidth() float64 {
	return l.PageWidth - l.MarginLeft - l.MarginRight
}

// ContentHeight is the vertical space between the margins.
func (l Layout) ContentHeight() float64 {
	return l.PageHeight - l.MarginTop - l.MarginBottom
}

// LineHeight returns the height of one line set at size points.
func (l Layout) LineHeight(size float64) float64 {
	return size * ptToMM * l.LineSpacing
}

// HeadingSize returns the font size of a heading; level 1 is the largest.
func (l Layout) HeadingSize(level int) float64 {
	switch level {
	case 1:
		return l.BodySize * 1.8
	case 2:
		return l.BodySize * 1.5
	default:
		return l.BodySize * 1.25
	}
}
