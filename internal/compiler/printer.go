package compiler

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/uikit/internal/element"
)

// rawTextElements have content the HTML tokenizer never decodes.
var rawTextElements = map[string]bool{
	"iframe": true, "noembed": true, "noframes": true, "noscript": true,
	"plaintext": true, "script": true, "style": true, "xmp": true,
}

var (
	textEscaper        = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	doubleQuoteEscaper = strings.NewReplacer("&", "&amp;", `"`, "&#34;")
	singleQuoteEscaper = strings.NewReplacer("&", "&amp;", "'", "&#39;")
)

func identity(s string) string { return s }

// PrintContext prints a parsed template back to html/template source,
// restoring actions and substituting auxiliary nodes.
type PrintContext struct {
	b       strings.Builder
	actions []action
	aux     map[*html.Node]*AuxiliaryNode
}

func newPrintContext(actions []action, aux map[*html.Node]*AuxiliaryNode) *PrintContext {
	return &PrintContext{actions: actions, aux: aux}
}

// WriteString writes s verbatim.
func (p *PrintContext) WriteString(s string) {
	p.b.WriteString(s)
}

// Action writes a template action.
func (p *PrintContext) Action(pipeline string) {
	p.b.WriteString("{{")
	p.b.WriteString(pipeline)
	p.b.WriteString("}}")
}

// String returns everything printed so far.
func (p *PrintContext) String() string {
	return p.b.String()
}

// Print writes n and its subtree.
func (p *PrintContext) Print(n *html.Node) {
	if aux, ok := p.aux[n]; ok {
		aux.Print(p)
		return
	}

	switch n.Type {
	case html.DocumentNode:
		p.children(n)
	case html.DoctypeNode:
		p.b.WriteString("<!DOCTYPE ")
		p.b.WriteString(n.Data)
		p.b.WriteString(">")
	case html.CommentNode:
		p.b.WriteString("<!--")
		p.b.WriteString(restore(n.Data, p.actions, identity))
		p.b.WriteString("-->")
	case html.TextNode:
		if n.Parent != nil && n.Parent.Type == html.ElementNode && rawTextElements[n.Parent.Data] {
			p.b.WriteString(restore(n.Data, p.actions, identity))
			return
		}
		p.b.WriteString(restore(n.Data, p.actions, textEscaper.Replace))
	case html.ElementNode:
		p.element(n)
	}
}

func (p *PrintContext) children(n *html.Node) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		p.Print(child)
	}
}

func (p *PrintContext) element(n *html.Node) {
	p.b.WriteByte('<')
	p.b.WriteString(n.Data)
	for _, a := range n.Attr {
		key := attrKey(a)
		if key == lineAttribute {
			continue
		}
		p.b.WriteByte(' ')
		p.b.WriteString(restore(key, p.actions, identity))
		if a.Val == "" {
			continue
		}
		p.attributeValue(a.Val)
	}
	p.b.WriteByte('>')

	if element.IsVoid(n.Data) {
		return
	}
	p.children(n)
	p.b.WriteString("</")
	p.b.WriteString(n.Data)
	p.b.WriteByte('>')
}

// attributeValue quotes with ' when an action in the value uses ".
func (p *PrintContext) attributeValue(val string) {
	quote, escape := `"`, doubleQuoteEscaper.Replace
	for _, piece := range split(val, p.actions) {
		if piece.action != nil && strings.Contains(piece.action.Raw, `"`) {
			quote, escape = "'", singleQuoteEscaper.Replace
			break
		}
	}
	p.b.WriteByte('=')
	p.b.WriteString(quote)
	p.b.WriteString(restore(val, p.actions, escape))
	p.b.WriteString(quote)
}
