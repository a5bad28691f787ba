// Package compiler rewrites component tags in html/template sources into
// calls against the render dispatcher.
//
// A template is parsed as HTML after its actions have been swapped for
// placeholders. Every element whose tag is claimed by a registered
// component is replaced by an AuxiliaryNode that prints
//
//	{{render "<class>" `<skeleton>` "<policy>" (pipeline) ...}}
//
// where the skeleton is the JSON form of the static arguments and the
// trailing pipelines are the dynamic ones, by position. Invocations
// without any dynamic argument can be rendered ahead of time by a static
// dispatcher; they print as {{mark "<class>"}} followed by the markup.
package compiler

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/conneroisu/uikit/internal/element"
	uierrors "github.com/conneroisu/uikit/internal/errors"
	"github.com/conneroisu/uikit/internal/logging"
	"github.com/conneroisu/uikit/internal/registry"
	"github.com/conneroisu/uikit/internal/runtime"
)

// StaticDispatcher renders invocations whose arguments are fully known at compile time.
type StaticDispatcher interface {
	Invoke(ctx context.Context, class string, args runtime.Arguments, policy runtime.Policy) (string, bool)
}

// CompileFunc reshapes the arguments of one invocation at compile time.
type CompileFunc func(nc *NodeCompiler, sk *runtime.Skeleton) error

// NodeCompilable is implemented by components with their own compile hook.
type NodeCompilable interface {
	CompileNode(nc *NodeCompiler, sk *runtime.Skeleton) error
}

// WhitespacePreserver is implemented by components whose content must
// keep its whitespace, such as code listings.
type WhitespacePreserver interface {
	PreserveWhitespace() bool
}

// lineAttribute carries the source line of component tags through the HTML parser.
const lineAttribute = "data-uikit-line"

// Compiler compiles templates against a component registry.
type Compiler struct {
	registry  *registry.ComponentRegistry
	namespace string
	static    func() StaticDispatcher
	logger    logging.Logger
	hooks     map[string]CompileFunc
	collector *uierrors.Collector
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithNamespace sets the tag namespace, "ui" by default.
func WithNamespace(namespace string) Option {
	return func(c *Compiler) {
		c.namespace = strings.TrimSuffix(strings.ToLower(namespace), ":")
	}
}

// WithStaticDispatcher enables ahead-of-time rendering. The factory is
// called once per Compile.
func WithStaticDispatcher(factory func() StaticDispatcher) Option {
	return func(c *Compiler) { c.static = factory }
}

// WithLogger sets the logger diagnostics go to.
func WithLogger(logger logging.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

// WithCompileFunc registers a compile hook for class. It runs instead of
// the component's own CompileNode.
func WithCompileFunc(class string, fn CompileFunc) Option {
	return func(c *Compiler) { c.hooks[class] = fn }
}

// WithCollector shares a diagnostics collector with the caller.
func WithCollector(collector *uierrors.Collector) Option {
	return func(c *Compiler) { c.collector = collector }
}

// New creates a compiler.
func New(reg *registry.ComponentRegistry, opts ...Option) *Compiler {
	c := &Compiler{
		registry:  reg,
		namespace: "ui",
		logger:    logging.Nop(),
		hooks:     make(map[string]CompileFunc),
		collector: uierrors.NewCollector(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("compiler")
	return c
}

// Prefix returns the tag prefix, e.g. "ui:".
func (c *Compiler) Prefix() string { return c.namespace + ":" }

// Diagnostics returns every diagnostic reported so far.
func (c *Compiler) Diagnostics() *uierrors.Collector { return c.collector }

// Result is the outcome of compiling one template.
type Result struct {
	Name   string
	Source string
	// Classes lists every component class the template references, sorted.
	Classes []string
	// Compiled counts top-level component tags that were rewritten.
	Compiled int
	// Prerendered counts those rendered ahead of time.
	Prerendered int
	// Skipped counts component tags left in place because of an error.
	Skipped     int
	Diagnostics []uierrors.Diagnostic
}

// Compile rewrites the component tags of source. Problems with single
// tags become diagnostics; an error is returned only when the source
// cannot be parsed at all.
func (c *Compiler) Compile(name, source string) (*Result, error) {
	protected, actions, err := protect(name, source)
	if err != nil {
		return nil, err
	}

	cp := &compilation{
		compiler: c,
		name:     name,
		actions:  actions,
		ctx:      context.Background(),
		aux:      make(map[*html.Node]*AuxiliaryNode),
		classes:  make(map[string]bool),
		result:   &Result{Name: name},
	}
	if c.static != nil {
		cp.static = c.static()
	}
	c.collector.ClearTemplate(name)

	protected = cp.annotate(protected)
	preamble, body, trailer := splitDocument(protected)

	nodes, err := parse(body)
	if err != nil {
		return nil, uierrors.NewCompileError(uierrors.CodeParseFailure, "cannot parse template", err).
			WithLocation(name, 0)
	}
	for _, n := range nodes {
		cp.walk(n)
	}

	p := newPrintContext(actions, cp.aux)
	p.WriteString(restore(preamble, actions, identity))
	for _, n := range nodes {
		p.Print(n)
	}
	p.WriteString(restore(trailer, actions, identity))

	result := cp.result
	result.Source = p.String()
	for class := range cp.classes {
		result.Classes = append(result.Classes, class)
	}
	sort.Strings(result.Classes)
	result.Diagnostics = c.collector.ByTemplate(name)
	return result, nil
}

// compilation is the state of one Compile call.
type compilation struct {
	compiler *Compiler
	name     string
	actions  []action
	static   StaticDispatcher
	ctx      context.Context
	aux      map[*html.Node]*AuxiliaryNode
	classes  map[string]bool
	result   *Result
}

func (cp *compilation) lookup(tag string) (*registry.Entry, bool) {
	return cp.compiler.registry.Lookup(tag)
}

func (cp *compilation) isNamespaced(tag string) bool {
	return strings.HasPrefix(tag, cp.compiler.Prefix())
}

func (cp *compilation) walk(n *html.Node) {
	if n.Type == html.ElementNode && cp.visit(n) {
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		cp.walk(child)
	}
}

// visit compiles n when it is a component tag and reports whether its
// subtree was consumed.
func (cp *compilation) visit(n *html.Node) bool {
	entry, ok := cp.lookup(n.Data)
	if !ok {
		if cp.isNamespaced(n.Data) {
			cp.report(cp.unknownTag(n), nil)
		}
		return false
	}

	nc := newNodeCompiler(cp, n, nil, entry)
	printed, err := nc.PrintNode()
	if err != nil {
		cp.result.Skipped++
		cp.report(uierrors.Diagnostic{
			Template: cp.name,
			Tag:      n.Data,
			Line:     nc.Line(),
			Message:  "left uncompiled: " + err.Error(),
			Severity: uierrors.SeverityError,
		}, err)
		return false
	}

	for _, d := range nc.diagnostics {
		cp.report(d, nil)
	}
	for _, class := range nc.classes {
		cp.classes[class] = true
	}
	cp.result.Compiled++
	if !printed.IsExpression() {
		cp.result.Prerendered++
	}

	marks := nc.marks
	cp.aux[n] = &AuxiliaryNode{
		Node:  n,
		Class: entry.Class,
		print: func(p *PrintContext) {
			for _, class := range marks {
				p.Action("mark " + strconv.Quote(class))
			}
			if printed.IsExpression() {
				p.Action(printed.Value)
				return
			}
			p.WriteString(printed.Value)
		},
	}
	return true
}

func (cp *compilation) unknownTag(n *html.Node) uierrors.Diagnostic {
	msg := "unknown component"
	if hint := cp.compiler.registry.Suggest(n.Data); hint != "" {
		msg += ", " + hint
	}
	return uierrors.Diagnostic{
		Template: cp.name,
		Tag:      n.Data,
		Line:     lineOf(n),
		Message:  msg,
		Severity: uierrors.SeverityNotice,
	}
}

// report logs d and records it. cause, when set, is logged with errors.
func (cp *compilation) report(d uierrors.Diagnostic, cause error) {
	c := cp.compiler
	c.collector.Add(d)

	fields := []interface{}{"template", d.Template, "tag", d.Tag, "line", d.Line}
	switch d.Severity {
	case uierrors.SeverityError:
		if cause == nil {
			cause = uierrors.NewCompileError(uierrors.CodeParseFailure, d.Message, nil)
		}
		c.logger.Error(cp.ctx, cause, "<{tag}> in {template} left uncompiled", fields...)
	case uierrors.SeverityWarning:
		c.logger.Warn(cp.ctx, nil, "<{tag}> in {template}: "+d.Message, fields...)
	default:
		c.logger.Notice(cp.ctx, "<{tag}> in {template}: "+d.Message, fields...)
	}
}

// annotate stamps component start tags with their line and expands
// self-closing component tags, which HTML would otherwise leave open.
// Only real start tags are touched: text inside script, style and the
// other raw text elements, comments and attribute values is copied as is.
func (cp *compilation) annotate(src string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(src))
	offset := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			b.WriteString(src[offset:])
			return b.String()
		}
		raw := string(z.Raw())
		start := offset
		offset += len(raw)

		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			b.WriteString(raw)
			continue
		}
		name, _ := z.TagName()
		tag := string(name)
		if _, ok := cp.lookup(tag); !ok && !cp.isNamespaced(tag) {
			b.WriteString(raw)
			continue
		}
		b.WriteString(annotateTag(raw, len(tag), cp.lineAt(src, start), tt == html.SelfClosingTagToken))
	}
}

// annotateTag rewrites the raw start tag <name ...> or <name .../>.
func annotateTag(raw string, nameLen, line int, selfClosing bool) string {
	name := raw[1 : 1+nameLen]
	rest := strings.TrimSuffix(raw[1+nameLen:], ">")
	tag := fmt.Sprintf(`<%s %s="%d"`, name, lineAttribute, line)
	if selfClosing && !element.IsVoid(name) {
		rest = strings.TrimSuffix(strings.TrimRight(rest, " \t\n\r\f"), "/")
		return tag + rest + "></" + name + ">"
	}
	return tag + rest + ">"
}

// lineAt maps an offset of the protected source back to a source line.
func (cp *compilation) lineAt(src string, offset int) int {
	line := 1 + strings.Count(src[:offset], "\n")
	for _, p := range split(src[:offset], cp.actions) {
		if p.action != nil {
			line += strings.Count(p.action.Raw, "\n")
		}
	}
	return line
}

func lineOf(n *html.Node) int {
	for _, a := range n.Attr {
		if a.Key == lineAttribute {
			line, _ := strconv.Atoi(a.Val)
			return line
		}
	}
	return 0
}

var documentStart = regexp.MustCompile(`(?i)<!doctype|<html[\s>]`)

// splitDocument separates whatever surrounds a full document, such as
// define and end actions, so the parser does not move it into the body.
func splitDocument(src string) (preamble, body, trailer string) {
	loc := documentStart.FindStringIndex(src)
	if loc == nil || strings.TrimSpace(placeholderPattern.ReplaceAllString(src[:loc[0]], "")) != "" {
		return "", src, ""
	}
	preamble, body = src[:loc[0]], src[loc[0]:]
	if end := strings.LastIndex(strings.ToLower(body), "</html>"); end >= 0 {
		body, trailer = body[:end+len("</html>")], body[end+len("</html>"):]
	}
	return preamble, body, trailer
}

// parse parses a full document when body starts one, a body fragment otherwise.
func parse(body string) ([]*html.Node, error) {
	if documentStart.MatchString(body) && documentStart.FindStringIndex(body)[0] == 0 {
		doc, err := html.Parse(strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		return []*html.Node{doc}, nil
	}
	return html.ParseFragment(strings.NewReader(body), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
}
