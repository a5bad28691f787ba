package compiler

import (
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/uikit/internal/element"
	uierrors "github.com/conneroisu/uikit/internal/errors"
	"github.com/conneroisu/uikit/internal/registry"
	"github.com/conneroisu/uikit/internal/runtime"
)

// cacheAttribute sets the cache policy of an invocation.
const cacheAttribute = "cache"

// NodeCompiler compiles one component tag. Nested component tags get
// their own NodeCompiler linked to the enclosing one.
type NodeCompiler struct {
	cp       *compilation
	node     *html.Node
	parent   *NodeCompiler
	entry    *registry.Entry
	exporter *Exporter

	hasExpression bool
	marks         []string
	classes       []string
	diagnostics   []uierrors.Diagnostic
}

func newNodeCompiler(cp *compilation, n *html.Node, parent *NodeCompiler, entry *registry.Entry) *NodeCompiler {
	nc := &NodeCompiler{cp: cp, node: n, parent: parent, entry: entry}
	nc.exporter = &Exporter{owner: nc}
	return nc
}

// Entry returns the registry entry of the component.
func (nc *NodeCompiler) Entry() *registry.Entry { return nc.entry }

// Parent returns the enclosing component, or nil at the top level.
func (nc *NodeCompiler) Parent() *NodeCompiler { return nc.parent }

// Exporter returns the argument exporter of this invocation.
func (nc *NodeCompiler) Exporter() *Exporter { return nc.exporter }

// Line returns the source line of the tag, or 0 when unknown.
func (nc *NodeCompiler) Line() int { return lineOf(nc.node) }

// Tag returns the tag name with the first matching prefix removed.
func (nc *NodeCompiler) Tag(prefixes ...string) string {
	for _, prefix := range prefixes {
		if strings.HasPrefix(nc.node.Data, prefix) {
			return strings.TrimPrefix(nc.node.Data, prefix)
		}
	}
	return nc.node.Data
}

// Is reports whether the tag equals one of names. A name ending in ':'
// matches every tag in that namespace.
func (nc *NodeCompiler) Is(names ...string) bool {
	for _, name := range names {
		name = strings.ToLower(name)
		if strings.HasSuffix(name, ":") && strings.HasPrefix(nc.node.Data, name) || nc.node.Data == name {
			return true
		}
	}
	return false
}

// IsElement reports whether the tag is a plain HTML element claimed by a
// component rather than a namespaced component tag.
func (nc *NodeCompiler) IsElement() bool {
	return !strings.Contains(nc.node.Data, ":")
}

// HasExpression reports whether the invocation, or anything nested in
// it, needs a value at render time.
func (nc *NodeCompiler) HasExpression() bool { return nc.hasExpression }

func (nc *NodeCompiler) markExpression() {
	for n := nc; n != nil && !n.hasExpression; n = n.parent {
		n.hasExpression = true
	}
}

// Attributes returns the static attributes, without the cache policy.
func (nc *NodeCompiler) Attributes() element.Attributes {
	attrs := element.Attributes{}
	for _, a := range nc.node.Attr {
		key := attrKey(a)
		if key == lineAttribute || key == cacheAttribute || hasAction(a.Key) || hasAction(a.Val) {
			continue
		}
		attrs[key] = a.Val
	}
	return attrs
}

// Variables returns the attributes whose values contain actions.
func (nc *NodeCompiler) Variables() (map[string]PrintedNode, error) {
	vars := make(map[string]PrintedNode)
	for _, a := range nc.node.Attr {
		key := attrKey(a)
		if key == lineAttribute || key == cacheAttribute {
			continue
		}
		if hasAction(a.Key) {
			return nil, nc.errorf(uierrors.CodeControlInContent, "actions cannot produce attribute names")
		}
		if !hasAction(a.Val) {
			continue
		}
		pipeline, err := valuePipeline(split(a.Val, nc.cp.actions))
		if err != nil {
			return nil, nc.errorf(uierrors.CodeControlInContent, err.Error())
		}
		vars[key] = PrintedNode{Value: pipeline, Variable: key, Expression: true}
	}
	return vars, nil
}

// Properties returns the static values of the requested attributes that are present.
func (nc *NodeCompiler) Properties(keys ...string) map[string]string {
	attrs := nc.Attributes()
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if attrs.Has(key) {
			out[strings.ToLower(key)] = attrs.Get(key)
		}
	}
	return out
}

// Policy returns the cache policy set by the cache attribute.
func (nc *NodeCompiler) Policy() (runtime.Policy, error) {
	for _, a := range nc.node.Attr {
		if a.Key != cacheAttribute {
			continue
		}
		if hasAction(a.Val) {
			return runtime.Auto, nc.errorf(uierrors.CodeInvalidArguments, "the cache policy must be static")
		}
		return runtime.ParsePolicy(a.Val)
	}
	return runtime.Auto, nil
}

// Notice records a notice against the tag.
func (nc *NodeCompiler) Notice(msg string) {
	nc.diagnose(uierrors.SeverityNotice, nc.node.Data, msg)
}

// Warn records a warning against the tag.
func (nc *NodeCompiler) Warn(msg string) {
	nc.diagnose(uierrors.SeverityWarning, nc.node.Data, msg)
}

func (nc *NodeCompiler) diagnose(severity uierrors.Severity, tag, msg string) {
	nc.diagnostics = append(nc.diagnostics, uierrors.Diagnostic{
		Template: nc.cp.name,
		Tag:      tag,
		Line:     nc.Line(),
		Message:  msg,
		Severity: severity,
	})
}

func (nc *NodeCompiler) errorf(code, msg string) error {
	return uierrors.NewCompileError(code, msg, nil).
		WithLocation(nc.cp.name, nc.Line()).
		WithComponent(nc.entry.Name)
}

// ParseContent turns the tag body into a content tree. Whitespace runs
// are squished unless the component preserves whitespace.
func (nc *NodeCompiler) ParseContent() (element.Content, error) {
	preserve := false
	if p, ok := nc.entry.Value.(WhitespacePreserver); ok {
		preserve = p.PreserveWhitespace()
	}
	return nc.parseChildren(nc.node, preserve)
}

func (nc *NodeCompiler) parseChildren(n *html.Node, preserve bool) (element.Content, error) {
	var content element.Content
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.TextNode:
			nodes, err := nc.parseText(child.Data, preserve)
			if err != nil {
				return nil, err
			}
			content = append(content, nodes...)
		case html.ElementNode:
			node, err := nc.parseElement(child, preserve)
			if err != nil {
				return nil, err
			}
			content = append(content, node)
		}
	}
	if preserve {
		return content, nil
	}
	return trimEdges(content), nil
}

func (nc *NodeCompiler) parseText(data string, preserve bool) (element.Content, error) {
	var out element.Content
	for _, p := range split(data, nc.cp.actions) {
		if p.action == nil {
			text := p.text
			if !preserve {
				text = squishRun(text)
			}
			out = append(out, element.Text(text))
			continue
		}
		switch {
		case p.action.IsComment():
		case p.action.IsControl():
			return nil, uierrors.NewCompileError(uierrors.CodeControlInContent,
				"control action "+p.action.Raw+" cannot be passed as component content", nil).
				WithLocation(nc.cp.name, p.action.Line).
				WithComponent(nc.entry.Name)
		default:
			out = append(out, element.Expr(nc.exporter.Value("("+p.action.Pipeline+")")))
		}
	}
	return out, nil
}

func (nc *NodeCompiler) parseElement(n *html.Node, preserve bool) (element.Node, error) {
	if entry, ok := nc.cp.lookup(n.Data); ok {
		child := newNodeCompiler(nc.cp, n, nc, entry)
		printed, err := child.PrintNode()
		if err != nil {
			return element.Node{}, err
		}
		nc.diagnostics = append(nc.diagnostics, child.diagnostics...)
		nc.classes = append(nc.classes, child.classes...)
		if printed.IsExpression() {
			return element.Expr(nc.exporter.Value("(" + printed.Value + ")")), nil
		}
		nc.marks = append(nc.marks, child.marks...)
		return element.Raw(printed.Value), nil
	}

	if nc.cp.isNamespaced(n.Data) {
		d := nc.cp.unknownTag(n)
		nc.diagnostics = append(nc.diagnostics, d)
	}

	el := &element.Element{Tag: n.Data, Attributes: element.Attributes{}}
	for _, a := range n.Attr {
		key := attrKey(a)
		switch {
		case key == lineAttribute:
		case hasAction(a.Key):
			return element.Node{}, nc.errorf(uierrors.CodeControlInContent, "actions cannot produce attribute names")
		case hasAction(a.Val):
			pipeline, err := valuePipeline(split(a.Val, nc.cp.actions))
			if err != nil {
				return element.Node{}, nc.errorf(uierrors.CodeControlInContent, err.Error())
			}
			if el.Bindings == nil {
				el.Bindings = make(map[string]int)
			}
			el.Bindings[key] = nc.exporter.Value(pipeline)
		default:
			el.Attributes[key] = a.Val
		}
	}

	content, err := nc.parseChildren(n, preserve || n.Data == "pre")
	if err != nil {
		return element.Node{}, err
	}
	el.Content = content
	return element.Node{Element: el}, nil
}

// PrintNode compiles the invocation. The result is either markup
// rendered ahead of time or a dispatcher call pipeline.
func (nc *NodeCompiler) PrintNode() (PrintedNode, error) {
	policy, err := nc.Policy()
	if err != nil {
		nc.Warn(err.Error() + "; using auto")
		policy = runtime.Auto
	}

	sk := runtime.Skeleton{Tag: nc.node.Data, Attributes: nc.Attributes()}
	vars, err := nc.Variables()
	if err != nil {
		return PrintedNode{}, err
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if sk.Variables == nil {
			sk.Variables = make(map[string]int, len(vars))
		}
		sk.Variables[name] = nc.exporter.Value(vars[name].Value)
	}

	content, err := nc.ParseContent()
	if err != nil {
		return PrintedNode{}, err
	}
	sk.Content = content

	if hook := nc.cp.compiler.hook(nc.entry); hook != nil {
		if err := hook(nc, &sk); err != nil {
			return PrintedNode{}, nc.errorf(uierrors.CodeInvalidArguments, err.Error())
		}
	}

	nc.classes = append(nc.classes, nc.entry.Class)

	if !nc.hasExpression && nc.cp.static != nil && policy.Prerenderable() {
		if args, err := sk.Bind(nil); err == nil {
			// components rendered from inside this one register here
			inv := runtime.NewInvocations()
			ctx := runtime.WithInvocations(nc.cp.ctx, inv)
			if out, ok := nc.cp.static.Invoke(ctx, nc.entry.Class, args, runtime.Ephemeral); ok {
				marks := []string{nc.entry.Class}
				for _, class := range inv.Classes() {
					if class != nc.entry.Class {
						marks = append(marks, class)
					}
				}
				nc.marks = append(marks, nc.marks...)
				return PrintedNode{Value: out}, nil
			}
		}
	}

	call, err := nc.exporter.Call(nc.entry.Class, sk, policy)
	if err != nil {
		return PrintedNode{}, nc.errorf(uierrors.CodeInvalidArguments, err.Error())
	}
	return PrintedNode{Value: call, Expression: true}, nil
}

func (c *Compiler) hook(entry *registry.Entry) CompileFunc {
	if fn, ok := c.hooks[entry.Class]; ok {
		return fn
	}
	if compilable, ok := entry.Value.(NodeCompilable); ok {
		return compilable.CompileNode
	}
	return nil
}

func attrKey(a html.Attribute) string {
	if a.Namespace != "" {
		return a.Namespace + ":" + a.Key
	}
	return a.Key
}

// squishRun collapses whitespace in a text run, keeping a single space
// where the run started or ended with whitespace.
func squishRun(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s == "" {
			return ""
		}
		return " "
	}
	out := strings.Join(fields, " ")
	if isSpace(s[0]) {
		out = " " + out
	}
	if isSpace(s[len(s)-1]) {
		out += " "
	}
	return out
}

// trimEdges drops leading and trailing whitespace of a content list and
// merges adjacent text nodes.
func trimEdges(content element.Content) element.Content {
	var merged element.Content
	for _, n := range content {
		if last := len(merged) - 1; last >= 0 && isText(n) && isText(merged[last]) {
			merged[last].Text = squishRun(merged[last].Text + n.Text)
			continue
		}
		merged = append(merged, n)
	}
	if len(merged) > 0 && isText(merged[0]) {
		merged[0].Text = strings.TrimLeft(merged[0].Text, " ")
	}
	if last := len(merged) - 1; last >= 0 && isText(merged[last]) {
		merged[last].Text = strings.TrimRight(merged[last].Text, " ")
	}

	out := merged[:0]
	for _, n := range merged {
		if isText(n) && n.Text == "" {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isText(n element.Node) bool {
	return n.Element == nil && !n.IsExpression() && n.HTML == ""
}
