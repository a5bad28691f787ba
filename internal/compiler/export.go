package compiler

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/uikit/internal/runtime"
)

// PrintedNode is the printed form of a node: literal markup, or a
// pipeline evaluated at render time.
type PrintedNode struct {
	Value string
	// Variable names the attribute the node was printed for, if any.
	Variable   string
	Expression bool
}

// IsExpression reports whether Value is a pipeline rather than markup.
func (p PrintedNode) IsExpression() bool { return p.Expression }

// Exporter collects the positional pipelines of one invocation and
// serializes the invocation into a dispatcher call.
type Exporter struct {
	owner  *NodeCompiler
	values []string
}

// Value appends a pipeline and returns its position. Adding a value makes
// the owning invocation, and every enclosing one, dynamic.
func (e *Exporter) Value(pipeline string) int {
	e.values = append(e.values, pipeline)
	if e.owner != nil {
		e.owner.markExpression()
	}
	return len(e.values) - 1
}

// Values returns the pipelines in position order.
func (e *Exporter) Values() []string {
	out := make([]string, len(e.values))
	copy(out, e.values)
	return out
}

// Call returns the dispatcher call pipeline, without delimiters.
func (e *Exporter) Call(class string, sk runtime.Skeleton, policy runtime.Policy) (string, error) {
	encoded, err := sk.Encode()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("render ")
	b.WriteString(strconv.Quote(class))
	b.WriteString(" `")
	b.WriteString(encoded)
	b.WriteString("` ")
	b.WriteString(strconv.Quote(policy.String()))
	for _, v := range e.values {
		b.WriteByte(' ')
		b.WriteString(v)
	}
	return b.String(), nil
}

// AuxiliaryNode replaces a compiled element; its output comes from a
// print callback instead of the element's own markup.
type AuxiliaryNode struct {
	Node  *html.Node
	Class string
	print func(p *PrintContext)
}

// Print writes the node's output to p.
func (a *AuxiliaryNode) Print(p *PrintContext) {
	a.print(p)
}
