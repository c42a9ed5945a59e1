package diagram

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
)

// Shape is the outline of a flowchart node.
type Shape int

const (
	ShapeBox        Shape = iota // id[label]
	ShapeRound                   // id(label)
	ShapeStadium                 // id([label])
	ShapeSubroutine              // id[[label]]
	ShapeCylinder                // id[(label)]
	ShapeCircle                  // id((label))
	ShapeDiamond                 // id{label}
	ShapeHexagon                 // id{{label}}
	ShapeAsymmetric              // id>label]
)

// EdgeStyle is the stroke of a flowchart edge.
type EdgeStyle int

const (
	EdgeSolid  EdgeStyle = iota // -->
	EdgeDotted                  // -.->
	EdgeThick                   // ==>
)

// Node is a flowchart node. Label defaults to the ID.
type Node struct {
	ID    string
	Label string
	Shape Shape
}

// Edge connects two nodes.
type Edge struct {
	From, To string
	Label    string
	Style    EdgeStyle
	Arrow    bool // arrowhead at To
	Both     bool // arrowhead at From too
}

// Subgraph groups nodes into a titled cluster.
type Subgraph struct {
	Title    string
	Nodes    []string
	Children []*Subgraph
}

// Flowchart is a parsed flowchart diagram.
type Flowchart struct {
	Direction string // TB, BT, LR or RL
	Nodes     []*Node
	Edges     []Edge
	Subgraphs []*Subgraph

	index map[string]*Node
}

// SyntaxError reports where a flowchart source could not be parsed.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// reservedChars may not appear in an unquoted node label.
const reservedChars = `[](){}"`

var (
	headerRe   = regexp.MustCompile(`^(?:graph|flowchart)(?:\s+(TD|TB|BT|LR|RL))?\s*$`)
	subgraphRe = regexp.MustCompile(`^([\w.-]+)\s*\[(.*)\]$`)

	// -- text -->, == text ==>, -. text .->
	textEdgeRe = regexp.MustCompile(`^(<?)(--|==|-\.)\s+(.+?)\s*(-->|---|==>|===|\.->|\.-)`)
	// -->, ---, -.->, -.-, ==>, === with an optional |label|
	edgeRe = regexp.MustCompile(`^(<?)(-\.+->|-\.+-|={2,}>|={3,}|-{2,}>|-{3,})(?:\s*\|([^|]*)\|)?`)

	lineBreakRe = regexp.MustCompile(`(?i)<br\s*/?>`)
)

var nodeShapes = []struct {
	open, close string
	shape       Shape
}{
	{"(((", ")))", ShapeCircle},
	{"((", "))", ShapeCircle},
	{"([", "])", ShapeStadium},
	{"[[", "]]", ShapeSubroutine},
	{"[(", ")]", ShapeCylinder},
	{"{{", "}}", ShapeHexagon},
	{"[", "]", ShapeBox},
	{"(", ")", ShapeRound},
	{"{", "}", ShapeDiamond},
	{">", "]", ShapeAsymmetric},
}

// ignoredKeywords start statements that only affect styling or
// interactivity.
var ignoredKeywords = map[string]bool{
	"classDef":  true,
	"class":     true,
	"style":     true,
	"linkStyle": true,
	"click":     true,
	"direction": true,
}

// ParseFlowchart parses the flowchart subset: a "graph" or "flowchart"
// header with optional direction, node chains joined by edges, "&" node
// groups, subgraph blocks and "%%" comments. Styling statements are
// accepted and ignored.
func ParseFlowchart(source string) (*Flowchart, error) {
	p := &flowParser{fc: &Flowchart{Direction: "TB", index: make(map[string]*Node)}}

	lines := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")
	header := false
	for i, raw := range lines {
		p.line = i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		if !header {
			head, rest, _ := strings.Cut(line, ";")
			m := headerRe.FindStringSubmatch(strings.TrimSpace(head))
			if m == nil {
				return nil, p.errorf("unsupported diagram header %q", head)
			}
			if m[1] != "" && m[1] != "TD" {
				p.fc.Direction = m[1]
			}
			header = true
			line = rest
		}
		for _, stmt := range splitStatements(line) {
			if err := p.statement(stmt); err != nil {
				return nil, err
			}
		}
	}

	if !header {
		return nil, ErrEmpty
	}
	if len(p.stack) > 0 {
		return nil, p.errorf("subgraph %q is not closed", p.stack[len(p.stack)-1].Title)
	}
	if len(p.fc.Nodes) == 0 {
		return nil, p.errorf("flowchart has no nodes")
	}
	return p.fc, nil
}

// splitStatements splits a line on ";" outside quoted text.
func splitStatements(line string) []string {
	var out []string
	inQuote := false
	start := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '"':
			inQuote = !inQuote
		case ';':
			if !inQuote {
				out = append(out, line[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, line[start:])

	stmts := out[:0]
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

type flowParser struct {
	fc    *Flowchart
	stack []*Subgraph
	line  int

	s   string
	pos int
}

func (p *flowParser) errorf(format string, args ...any) error {
	return &SyntaxError{Line: p.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *flowParser) statement(stmt string) error {
	keyword, rest, _ := strings.Cut(stmt, " ")
	switch {
	case keyword == "subgraph":
		return p.openSubgraph(strings.TrimSpace(rest))
	case stmt == "end":
		if len(p.stack) == 0 {
			return p.errorf("unexpected 'end' outside a subgraph")
		}
		p.stack = p.stack[:len(p.stack)-1]
		return nil
	case ignoredKeywords[keyword]:
		return nil
	}
	return p.chain(stmt)
}

func (p *flowParser) openSubgraph(spec string) error {
	if spec == "" {
		return p.errorf("subgraph needs a title")
	}
	title := spec
	if m := subgraphRe.FindStringSubmatch(spec); m != nil {
		title = m[2]
	}
	sg := &Subgraph{Title: decodeLabel(unquote(strings.TrimSpace(title)))}

	if n := len(p.stack); n > 0 {
		p.stack[n-1].Children = append(p.stack[n-1].Children, sg)
	} else {
		p.fc.Subgraphs = append(p.fc.Subgraphs, sg)
	}
	p.stack = append(p.stack, sg)
	return nil
}

// chain parses "group (edge group)*" where a group is "node (& node)*".
func (p *flowParser) chain(stmt string) error {
	p.s, p.pos = stmt, 0

	left, err := p.nodeGroup()
	if err != nil {
		return err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.s) {
			return nil
		}
		proto, err := p.edge()
		if err != nil {
			return err
		}
		right, err := p.nodeGroup()
		if err != nil {
			return err
		}
		for _, from := range left {
			for _, to := range right {
				e := proto
				e.From, e.To = from, to
				p.fc.Edges = append(p.fc.Edges, e)
			}
		}
		left = right
	}
}

func (p *flowParser) nodeGroup() ([]string, error) {
	var ids []string
	for {
		p.skipSpace()
		id, err := p.node()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		p.skipSpace()
		if p.pos < len(p.s) && p.s[p.pos] == '&' {
			p.pos++
			continue
		}
		return ids, nil
	}
}

func (p *flowParser) node() (string, error) {
	start := p.pos
	for p.pos < len(p.s) && isIDChar(p.s, p.pos) {
		p.pos++
	}
	id := p.s[start:p.pos]
	if id == "" {
		return "", p.errorf("expected node id at %q", p.rest())
	}

	for _, sh := range nodeShapes {
		if !strings.HasPrefix(p.s[p.pos:], sh.open) {
			continue
		}
		p.pos += len(sh.open)
		label, err := p.label(sh.close)
		if err != nil {
			return "", err
		}
		p.declare(id, label, sh.shape, true)
		return id, nil
	}
	p.declare(id, "", ShapeBox, false)
	return id, nil
}

// label reads a node label up to close. Quoted labels may contain any
// character, with \" for a literal quote. Unquoted labels may not contain
// reserved characters.
func (p *flowParser) label(close string) (string, error) {
	p.skipSpace()
	if p.pos < len(p.s) && p.s[p.pos] == '"' {
		p.pos++
		var b strings.Builder
		for {
			if p.pos >= len(p.s) {
				return "", p.errorf("unterminated quoted label")
			}
			c := p.s[p.pos]
			if c == '\\' && p.pos+1 < len(p.s) && p.s[p.pos+1] == '"' {
				b.WriteByte('"')
				p.pos += 2
				continue
			}
			p.pos++
			if c == '"' {
				break
			}
			b.WriteByte(c)
		}
		p.skipSpace()
		if !strings.HasPrefix(p.s[p.pos:], close) {
			return "", p.errorf("expected %q after quoted label, found %q", close, p.rest())
		}
		p.pos += len(close)
		return decodeLabel(b.String()), nil
	}

	end := strings.Index(p.s[p.pos:], close)
	if end < 0 {
		return "", p.errorf("unclosed node label, expected %q", close)
	}
	text := p.s[p.pos : p.pos+end]
	if i := strings.IndexAny(text, reservedChars); i >= 0 {
		return "", p.errorf("reserved character %q in unquoted label %q", text[i], text)
	}
	p.pos += end + len(close)
	return decodeLabel(strings.TrimSpace(text)), nil
}

func (p *flowParser) edge() (Edge, error) {
	rest := p.s[p.pos:]
	var e Edge
	var arrow, label, both string

	if m := textEdgeRe.FindStringSubmatch(rest); m != nil {
		both, label, arrow = m[1], m[3], m[2]+m[4]
		p.pos += len(m[0])
	} else if m := edgeRe.FindStringSubmatch(rest); m != nil {
		both, arrow, label = m[1], m[2], m[3]
		p.pos += len(m[0])
	} else {
		return e, p.errorf("expected an edge at %q", p.rest())
	}

	e.Label = decodeLabel(unquote(strings.TrimSpace(label)))
	e.Arrow = strings.HasSuffix(arrow, ">")
	e.Both = both != "" && e.Arrow
	switch {
	case strings.Contains(arrow, "."):
		e.Style = EdgeDotted
	case strings.HasPrefix(arrow, "="):
		e.Style = EdgeThick
	}
	return e, nil
}

// declare records a node, placing it in the innermost open subgraph the
// first time it is seen. A later explicit label replaces an earlier one.
func (p *flowParser) declare(id, label string, shape Shape, explicit bool) {
	if n, ok := p.fc.index[id]; ok {
		if explicit {
			n.Label, n.Shape = label, shape
		}
		return
	}
	if !explicit {
		label = id
	}
	n := &Node{ID: id, Label: label, Shape: shape}
	p.fc.index[id] = n
	p.fc.Nodes = append(p.fc.Nodes, n)
	if k := len(p.stack); k > 0 {
		p.stack[k-1].Nodes = append(p.stack[k-1].Nodes, id)
	}
}

func (p *flowParser) skipSpace() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t') {
		p.pos++
	}
}

func (p *flowParser) rest() string {
	const limit = 20
	r := p.s[p.pos:]
	if len(r) > limit {
		return r[:limit] + "..."
	}
	return r
}

// isIDChar reports whether s[i] continues a node id. "-" and "." only
// count when followed by another id character, so "A-->B" ends at "A".
func isIDChar(s string, i int) bool {
	c := s[i]
	if isWordChar(c) {
		return true
	}
	if c == '-' || c == '.' {
		return i+1 < len(s) && isWordChar(s[i+1])
	}
	return false
}

func isWordChar(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `\"`, `"`)
	}
	return s
}

// decodeLabel resolves HTML entities and turns <br> into line breaks.
func decodeLabel(s string) string {
	return lineBreakRe.ReplaceAllString(html.UnescapeString(s), "\n")
}

// =============================================================================
// DOT output
// =============================================================================

// DOT converts the flowchart to Graphviz DOT.
func (fc *Flowchart) DOT() string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", fc.Direction)
	buf.WriteString("  bgcolor=\"white\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=\"#ECECFF\", color=\"#9370DB\", fontname=\"Helvetica\", fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [color=\"#333333\", fontname=\"Helvetica\", fontsize=12];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.4;\n")
	buf.WriteString("\n")

	placed := make(map[string]bool)
	cluster := 0
	for _, sg := range fc.Subgraphs {
		fc.writeCluster(&buf, sg, 1, &cluster, placed)
	}
	for _, n := range fc.Nodes {
		if !placed[n.ID] {
			fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, nodeAttrs(n))
		}
	}

	buf.WriteString("\n")
	for _, e := range fc.Edges {
		attrs := edgeAttrs(e)
		if len(attrs) == 0 {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.From, e.To, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func (fc *Flowchart) writeCluster(buf *bytes.Buffer, sg *Subgraph, depth int, counter *int, placed map[string]bool) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(buf, "%ssubgraph \"cluster_%d\" {\n", indent, *counter)
	*counter++
	fmt.Fprintf(buf, "%s  label=%q;\n", indent, sg.Title)
	fmt.Fprintf(buf, "%s  style=\"rounded,filled\"; fillcolor=\"#FFFFDE\"; color=\"#AAAA33\";\n", indent)
	for _, child := range sg.Children {
		fc.writeCluster(buf, child, depth+1, counter, placed)
	}
	for _, id := range sg.Nodes {
		if placed[id] {
			continue
		}
		placed[id] = true
		fmt.Fprintf(buf, "%s  %q [%s];\n", indent, id, nodeAttrs(fc.index[id]))
	}
	fmt.Fprintf(buf, "%s}\n", indent)
}

func nodeAttrs(n *Node) string {
	attrs := []string{fmt.Sprintf("label=%q", n.Label)}
	switch n.Shape {
	case ShapeBox:
		attrs = append(attrs, `style="filled"`)
	case ShapeSubroutine:
		attrs = append(attrs, `style="filled"`, "peripheries=2")
	case ShapeCylinder:
		attrs = append(attrs, "shape=cylinder", `style="filled"`)
	case ShapeCircle:
		attrs = append(attrs, "shape=circle", `style="filled"`)
	case ShapeDiamond:
		attrs = append(attrs, "shape=diamond", `style="filled"`)
	case ShapeHexagon:
		attrs = append(attrs, "shape=hexagon", `style="filled"`)
	case ShapeAsymmetric:
		attrs = append(attrs, "shape=cds", `style="filled"`)
	}
	return strings.Join(attrs, ", ")
}

func edgeAttrs(e Edge) []string {
	var attrs []string
	if e.Label != "" {
		attrs = append(attrs, fmt.Sprintf("label=%q", e.Label))
	}
	switch e.Style {
	case EdgeDotted:
		attrs = append(attrs, "style=dashed")
	case EdgeThick:
		attrs = append(attrs, "penwidth=2")
	}
	if !e.Arrow {
		attrs = append(attrs, "arrowhead=none")
	}
	if e.Both {
		attrs = append(attrs, "dir=both")
	}
	return attrs
}
