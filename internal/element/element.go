// Package element models the HTML handed to components: elements with an
// attribute set and a content tree of text, expression values, trusted
// markup and nested elements. The compiler produces content trees from
// component tag bodies; components build their output with the same types.
package element

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"strings"
	"unicode"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Void elements never have content or a closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// IsVoid reports whether tag is a void HTML element.
func IsVoid(tag string) bool {
	return voidElements[strings.ToLower(tag)]
}

// Element is an HTML element.
type Element struct {
	Tag        string     `json:"tag"`
	Attributes Attributes `json:"attributes,omitempty"`
	// Bindings maps attribute names to positions in the value list
	// supplied at render time.
	Bindings map[string]int `json:"bindings,omitempty"`
	Content  Content        `json:"content,omitempty"`
}

// New creates an element with an empty attribute set.
func New(tag string) *Element {
	return &Element{Tag: strings.ToLower(tag), Attributes: Attributes{}}
}

// Attr sets an attribute, merging class and style.
func (e *Element) Attr(name, value string) *Element {
	if e.Attributes == nil {
		e.Attributes = Attributes{}
	}
	e.Attributes.Set(name, value)
	return e
}

// With merges attrs into the element.
func (e *Element) With(attrs Attributes) *Element {
	if e.Attributes == nil {
		e.Attributes = Attributes{}
	}
	e.Attributes.Merge(attrs)
	return e
}

// Append adds content nodes.
func (e *Element) Append(nodes ...Node) *Element {
	e.Content = append(e.Content, nodes...)
	return e
}

// Text appends an escaped text node.
func (e *Element) Text(s string) *Element {
	return e.Append(Text(s))
}

// Raw appends trusted markup.
func (e *Element) Raw(html string) *Element {
	return e.Append(Raw(html))
}

// Child appends a nested element.
func (e *Element) Child(child *Element) *Element {
	return e.Append(Node{Element: child})
}

// HTML renders the element.
func (e *Element) HTML() string {
	var b strings.Builder
	e.write(&b)
	return b.String()
}

func (e *Element) write(b *strings.Builder) {
	b.WriteByte('<')
	b.WriteString(e.Tag)
	b.WriteString(e.Attributes.String())
	b.WriteByte('>')
	if IsVoid(e.Tag) {
		return
	}
	e.Content.write(b)
	b.WriteString("</")
	b.WriteString(e.Tag)
	b.WriteByte('>')
}

// Component adapts the element to a templ component.
func (e *Element) Component() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, e.HTML())
		return err
	})
}

// Node is one entry of a content tree. Exactly one of Text, Expr, HTML
// or Element is meaningful.
type Node struct {
	Text string `json:"text,omitempty"`
	// Expr is the position of the node's value in the render-time value list.
	Expr    *int        `json:"expr,omitempty"`
	Value   interface{} `json:"value,omitempty"`
	HTML    string      `json:"html,omitempty"`
	Element *Element    `json:"element,omitempty"`
}

// Text returns a text node.
func Text(s string) Node { return Node{Text: s} }

// Raw returns a node holding trusted markup.
func Raw(html string) Node { return Node{HTML: html} }

// Expr returns an unbound expression node for position i.
func Expr(i int) Node { return Node{Expr: &i} }

// Value returns an already bound expression node.
func Value(v interface{}) Node { return Node{Value: v} }

// IsExpression reports whether the node holds an expression value.
func (n Node) IsExpression() bool { return n.Expr != nil || n.Value != nil }

// Content is a content tree.
type Content []Node

// HTML renders the content.
func (c Content) HTML() string {
	var b strings.Builder
	c.write(&b)
	return b.String()
}

func (c Content) write(b *strings.Builder) {
	for _, n := range c {
		switch {
		case n.Element != nil:
			n.Element.write(b)
		case n.IsExpression():
			b.WriteString(valueHTML(n.Value))
		case n.HTML != "":
			b.WriteString(n.HTML)
		default:
			b.WriteString(templ.EscapeString(n.Text))
		}
	}
}

// Text returns the plain text of the content, markup stripped.
func (c Content) Text() string {
	var b strings.Builder
	for _, n := range c {
		switch {
		case n.Element != nil:
			b.WriteString(n.Element.Content.Text())
		case n.IsExpression():
			if n.Value != nil {
				b.WriteString(fmt.Sprint(n.Value))
			}
		default:
			b.WriteString(n.Text)
		}
	}
	return Squish(b.String())
}

// Elements returns the direct child elements.
func (c Content) Elements() []*Element {
	var out []*Element
	for _, n := range c {
		if n.Element != nil {
			out = append(out, n.Element)
		}
	}
	return out
}

// IsEmpty reports whether the content has nothing but whitespace.
func (c Content) IsEmpty() bool {
	for _, n := range c {
		if n.Element != nil || n.IsExpression() || n.HTML != "" || strings.TrimSpace(n.Text) != "" {
			return false
		}
	}
	return true
}

// HasExpression reports whether any node, at any depth, needs a render-time value.
func (c Content) HasExpression() bool {
	for _, n := range c {
		if n.Expr != nil {
			return true
		}
		if n.Element != nil && (len(n.Element.Bindings) > 0 || n.Element.Content.HasExpression()) {
			return true
		}
	}
	return false
}

// Bind returns a copy of c with every expression position replaced by
// its value from values.
func (c Content) Bind(values []interface{}) (Content, error) {
	if c == nil {
		return nil, nil
	}
	out := make(Content, len(c))
	for i, n := range c {
		if n.Expr != nil {
			v, err := lookup(values, *n.Expr)
			if err != nil {
				return nil, err
			}
			out[i] = Value(v)
			continue
		}
		if n.Element != nil {
			el, err := n.Element.Bind(values)
			if err != nil {
				return nil, err
			}
			n.Element = el
		}
		out[i] = n
	}
	return out, nil
}

// Bind returns a copy of e with bound attributes and content.
func (e *Element) Bind(values []interface{}) (*Element, error) {
	out := &Element{Tag: e.Tag, Attributes: e.Attributes.Clone()}
	for name, pos := range e.Bindings {
		v, err := lookup(values, pos)
		if err != nil {
			return nil, err
		}
		out.Attributes.Set(name, BoundValue(name, v))
	}
	content, err := e.Content.Bind(values)
	if err != nil {
		return nil, err
	}
	out.Content = content
	return out, nil
}

func lookup(values []interface{}, i int) (interface{}, error) {
	if i < 0 || i >= len(values) {
		return nil, fmt.Errorf("expression %d out of range: %d values supplied", i, len(values))
	}
	return values[i], nil
}

// urlAttributes hold URLs in every element that defines them.
var urlAttributes = map[string]bool{
	"action": true, "background": true, "cite": true, "codebase": true,
	"formaction": true, "href": true, "icon": true, "longdesc": true,
	"manifest": true, "poster": true, "profile": true, "src": true,
	"usemap": true, "xmlns": true,
}

// IsURLAttribute reports whether the attribute name carries a URL. Like
// html/template it also treats names mentioning src, uri or url as URLs,
// after dropping a data- or xlink: prefix.
func IsURLAttribute(name string) bool {
	name = strings.ToLower(name)
	name = strings.TrimPrefix(name, "data-")
	name = strings.TrimPrefix(name, "xlink:")
	if urlAttributes[name] {
		return true
	}
	return strings.Contains(name, "src") || strings.Contains(name, "uri") || strings.Contains(name, "url")
}

// BoundValue formats a render-time value for the attribute name. Nil is
// the empty string. URL attributes go through templ's URL sanitizer
// unless the value is a template.URL or templ.SafeURL.
func BoundValue(name string, v interface{}) string {
	var s string
	switch v := v.(type) {
	case nil:
		return ""
	case template.URL:
		return string(v)
	case templ.SafeURL:
		return string(v)
	case string:
		s = v
	default:
		s = fmt.Sprint(v)
	}
	if IsURLAttribute(name) {
		return string(templ.URL(s))
	}
	return s
}

func valueHTML(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case template.HTML:
		return string(v)
	case string:
		return templ.EscapeString(v)
	default:
		return templ.EscapeString(fmt.Sprint(v))
	}
}

// Squish collapses whitespace runs into single spaces and trims the ends.
func Squish(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Slug turns s into a lowercase identifier made of letters, digits and dashes.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	// a Caser is stateful and must not be shared between goroutines
	for _, r := range cases.Lower(language.Und).String(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127 && unicode.IsLetter(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
