package component

import (
	"context"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/uikit/internal/element"
	"github.com/conneroisu/uikit/internal/runtime"
)

// sourceVariable holds the prepared listing after argument resolution.
const sourceVariable = "source"

// Code renders inline snippets and, with the block attribute, listings:
//
//	<code>go test ./...</code>
//	<code lang="go" block>
//	    func main() {}
//	</code>
//
// Inline code has its whitespace collapsed; blocks are dedented.
type Code struct{}

// PreserveWhitespace keeps the body verbatim for listings.
func (Code) PreserveWhitespace() bool { return true }

// ResolveArguments prepares the source text once per distinct body.
func (Code) ResolveArguments(args runtime.Arguments) (runtime.Arguments, error) {
	source := rawText(args.Content)
	if args.Bool("block") {
		source = Dedent(source)
	} else {
		source = element.Squish(source)
	}
	if args.Variables == nil {
		args.Variables = map[string]interface{}{}
	}
	args.Variables[sourceVariable] = source
	return args, nil
}

func (c Code) Render(_ context.Context, args runtime.Arguments) (templ.Component, error) {
	source, ok := args.Variables[sourceVariable].(string)
	if !ok {
		resolved, err := c.ResolveArguments(args)
		if err != nil {
			return nil, err
		}
		source = resolved.Variables[sourceVariable].(string)
	}
	if source == "" {
		return nil, nil
	}

	attrs := args.HTMLAttributes("lang", "block", sourceVariable)
	lang := args.String("lang", "")

	if !args.Bool("block") {
		code := element.New("code").Attr("class", "inline").With(attrs).Text(source)
		if lang != "" {
			code.Attr("class", "language-"+element.Slug(lang))
		}
		return code.Component(), nil
	}

	pre := element.New("pre").Attr("class", "block").With(attrs)
	code := element.New("code").Text(source)
	if lang != "" {
		pre.Attr("language", lang)
		code.Attr("class", "language-"+element.Slug(lang))
	}
	if lines := strings.Count(source, "\n") + 1; lines > 1 {
		pre.Attr("line-count", strconv.Itoa(lines))
	}
	return pre.Child(code).Component(), nil
}

// Dedent removes the indentation shared by every non-blank line, along
// with leading and trailing blank lines.
func Dedent(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")

	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}

	if indent > 0 {
		for i, line := range lines {
			if len(line) >= indent {
				lines[i] = line[indent:]
			} else {
				lines[i] = ""
			}
		}
	}
	return strings.Join(lines, "\n")
}
