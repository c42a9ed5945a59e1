package markdown

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseBlocks(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Block
	}{
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "headings by level",
			input: "# One\n## Two\n### Three",
			want: []Block{
				Heading{Level: 1, Text: "One"},
				Heading{Level: 2, Text: "Two"},
				Heading{Level: 3, Text: "Three"},
			},
		},
		{
			name:  "level four is a paragraph",
			input: "#### Four",
			want:  []Block{Paragraph{Text: "#### Four"}},
		},
		{
			name:  "paragraph lines join with single spaces",
			input: "first line\n  second line  \nthird",
			want:  []Block{Paragraph{Text: "first line second line third"}},
		},
		{
			name:  "blank line splits paragraphs",
			input: "alpha\n\nbeta",
			want:  []Block{Paragraph{Text: "alpha"}, Paragraph{Text: "beta"}},
		},
		{
			name:  "unordered markers share a family",
			input: "- one\n* two\n+ three",
			want:  []Block{UnorderedList{Items: []string{"one", "two", "three"}}},
		},
		{
			name:  "ordered list keeps indexes",
			input: "1. first\n2) second\n7. seventh",
			want: []Block{OrderedList{Items: []OrderedItem{
				{Index: 1, Text: "first"},
				{Index: 2, Text: "second"},
				{Index: 7, Text: "seventh"},
			}}},
		},
		{
			name:  "family change flushes list",
			input: "- bullet\n1. number",
			want: []Block{
				UnorderedList{Items: []string{"bullet"}},
				OrderedList{Items: []OrderedItem{{Index: 1, Text: "number"}}},
			},
		},
		{
			name:  "text after list flushes list",
			input: "- bullet\ntrailing text",
			want: []Block{
				UnorderedList{Items: []string{"bullet"}},
				Paragraph{Text: "trailing text"},
			},
		},
		{
			name:  "fenced code is verbatim",
			input: "```go\nfunc main() {\n\n\tprintln(\"# not a heading\")\n}\n```",
			want:  []Block{Code{Lang: "go", Content: "func main() {\n\n\tprintln(\"# not a heading\")\n}"}},
		},
		{
			name:  "info fence inside code does not close it",
			input: "```markdown\n```mermaid\ngraph TD\n```",
			want:  []Block{Code{Lang: "markdown", Content: "```mermaid\ngraph TD"}},
		},
		{
			name:  "standalone image",
			input: "![Diagram 1](data:image/png;base64,iVBORw0KGgo=)",
			want:  []Block{Image{Alt: "Diagram 1", Src: "data:image/png;base64,iVBORw0KGgo="}},
		},
		{
			name:  "inline image stays in paragraph",
			input: "see ![x](a.png) here",
			want:  []Block{Paragraph{Text: "see ![x](a.png) here"}},
		},
		{
			name:  "blockquote strips prefix",
			input: "> quoted\n>continued\n> \n> end",
			want:  []Block{Blockquote{Text: "quoted continued end"}},
		},
		{
			name:  "paragraph interrupted by heading",
			input: "text\n# Title",
			want:  []Block{Paragraph{Text: "text"}, Heading{Level: 1, Text: "Title"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q)\n got: %#v\nwant: %#v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseUnterminatedFence(t *testing.T) {
	input := "intro\n\n```python\nprint(1)\n\n# comment\n- not a list"
	got := Parse(input)

	want := []Block{
		Paragraph{Text: "intro"},
		Code{Lang: "python", Content: "print(1)\n\n# comment\n- not a list"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse()\n got: %#v\nwant: %#v", got, want)
	}
}

func TestParseFenceOnLastLine(t *testing.T) {
	got := Parse("```")
	want := []Block{Code{}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse(```) = %#v, want %#v", got, want)
	}
}

func TestParseCRLF(t *testing.T) {
	got := Parse("# Title\r\n\r\nbody\r\n")
	want := []Block{Heading{Level: 1, Text: "Title"}, Paragraph{Text: "body"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse() = %#v, want %#v", got, want)
	}
}

func TestParseIsRestartable(t *testing.T) {
	input := "# A\n\n- x\n- y\n\n```\ncode\n```\n\n> q"
	first := Parse(input)
	second := Parse(input)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Parse is not deterministic:\n%#v\n%#v", first, second)
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	inputs := []string{
		"# Project\n\nIntro paragraph spanning\ntwo lines.\n\n- a\n- b\n- c\n\n1. one\n2. two\n\n```sh\necho hi\n```\n\n![Diagram 1](diagram.png)\n\n> note this",
		"## Only heading",
		"```\n```",
		"```js\nconst x = 1;\n\n\nconst y = 2;",
		"- \n- second",
		"> \n\nafter",
		"3. third\n4. fourth\n\n- bullet\n\n#",
	}

	for _, input := range inputs {
		blocks := Parse(input)
		again := Parse(Flatten(blocks))
		if !reflect.DeepEqual(blocks, again) {
			t.Errorf("round trip mismatch for %q\nfirst:  %#v\nsecond: %#v", input, blocks, again)
		}
	}
}

func TestFlattenPreservesCountsAndText(t *testing.T) {
	blocks := []Block{
		Heading{Level: 2, Text: "Setup"},
		UnorderedList{Items: []string{"install", "configure", "run"}},
		OrderedList{Items: []OrderedItem{{Index: 1, Text: "first"}, {Index: 2, Text: "second"}}},
		Code{Lang: "mermaid", Content: "graph TD\n  A --> B"},
		Blockquote{Text: "careful"},
		Paragraph{Text: "done"},
	}

	got := Parse(Flatten(blocks))
	if len(got) != len(blocks) {
		t.Fatalf("got %d blocks, want %d", len(got), len(blocks))
	}
	for i := range blocks {
		if got[i].Kind() != blocks[i].Kind() {
			t.Errorf("block %d kind = %s, want %s", i, got[i].Kind(), blocks[i].Kind())
		}
	}
	if ul := got[1].(UnorderedList); len(ul.Items) != 3 {
		t.Errorf("unordered items = %d, want 3", len(ul.Items))
	}
	if code := got[3].(Code); !strings.Contains(code.Content, "A --> B") {
		t.Errorf("code content lost: %q", code.Content)
	}
}

func TestStats(t *testing.T) {
	blocks := Parse("# T\n\npara\n\n- a\n\n- b\n\n```\nx\n```")
	stats := Stats(blocks)

	want := map[Kind]int{
		KindHeading:       1,
		KindParagraph:     1,
		KindUnorderedList: 2,
		KindCode:          1,
	}
	if !reflect.DeepEqual(stats, want) {
		t.Errorf("Stats() = %v, want %v", stats, want)
	}
}
