package compiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	uierrors "github.com/conneroisu/uikit/internal/errors"
)

// action is one {{ ... }} of the source.
type action struct {
	// Raw is the action exactly as written, delimiters included.
	Raw string
	// Pipeline is the action body without delimiters or trim markers.
	Pipeline string
	Line     int
}

// controlKeywords start actions that shape template structure instead of
// producing a value.
var controlKeywords = map[string]bool{
	"if": true, "else": true, "end": true, "range": true, "with": true,
	"block": true, "define": true, "template": true, "break": true,
	"continue": true,
}

// IsControl reports whether the action cannot be captured as a value.
func (a action) IsControl() bool {
	fields := strings.Fields(a.Pipeline)
	if len(fields) == 0 {
		return true
	}
	if controlKeywords[fields[0]] {
		return true
	}
	// variable declaration or assignment
	return strings.HasPrefix(fields[0], "$") && len(fields) > 1 && (fields[1] == ":=" || fields[1] == "=")
}

// IsComment reports whether the action is a template comment.
func (a action) IsComment() bool {
	return strings.HasPrefix(a.Pipeline, "/*")
}

// placeholders stand in for actions while the HTML parser runs. They are
// lowercase so that tag and attribute name folding leaves them intact.
var placeholderPattern = regexp.MustCompile(`uikitact(\d{6})x`)

func placeholder(i int) string {
	return fmt.Sprintf("uikitact%06dx", i)
}

// protect replaces every action in src by a placeholder.
func protect(name, src string) (string, []action, error) {
	var (
		b       strings.Builder
		actions []action
		line    = 1
	)
	for {
		start := strings.Index(src, "{{")
		if start < 0 {
			b.WriteString(src)
			return b.String(), actions, nil
		}
		end, err := actionEnd(src, start+2)
		if err != nil {
			return "", nil, uierrors.NewCompileError(uierrors.CodeParseFailure, err.Error(), nil).
				WithLocation(name, line+strings.Count(src[:start], "\n"))
		}
		b.WriteString(src[:start])
		line += strings.Count(src[:start], "\n")

		raw := src[start:end]
		actions = append(actions, action{Raw: raw, Pipeline: pipeline(raw), Line: line})
		b.WriteString(placeholder(len(actions) - 1))

		line += strings.Count(raw, "\n")
		src = src[end:]
	}
}

// actionEnd returns the offset just past the "}}" closing the action
// whose body starts at i, skipping string, rune and raw string literals.
func actionEnd(src string, i int) (int, error) {
	body := i
	if strings.HasPrefix(src[body:], "- ") {
		body += 2
	}
	if strings.HasPrefix(src[body:], "/*") {
		j := strings.Index(src[body:], "*/")
		if j < 0 {
			return 0, fmt.Errorf("unclosed comment")
		}
		i = body + j + 2
	}
	for i < len(src) {
		switch c := src[i]; c {
		case '"', '\'':
			j := i + 1
			for j < len(src) && src[j] != c {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			i = j + 1
		case '`':
			j := strings.IndexByte(src[i+1:], '`')
			if j < 0 {
				return 0, fmt.Errorf("unterminated raw string in action")
			}
			i += j + 2
		case '}':
			if strings.HasPrefix(src[i:], "}}") {
				return i + 2, nil
			}
			i++
		default:
			i++
		}
	}
	return 0, fmt.Errorf("unclosed action")
}

func pipeline(raw string) string {
	body := strings.TrimSuffix(strings.TrimPrefix(raw, "{{"), "}}")
	if len(body) >= 2 && body[0] == '-' && isSpace(body[1]) {
		body = body[2:]
	}
	if n := len(body); n >= 2 && body[n-1] == '-' && isSpace(body[n-2]) {
		body = body[:n-2]
	}
	return strings.TrimSpace(body)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// piece is a run of literal text or one action.
type piece struct {
	text   string
	action *action
}

// split cuts s at placeholders.
func split(s string, actions []action) []piece {
	var out []piece
	last := 0
	for _, m := range placeholderPattern.FindAllStringSubmatchIndex(s, -1) {
		i, err := strconv.Atoi(s[m[2]:m[3]])
		if err != nil || i >= len(actions) {
			continue
		}
		if m[0] > last {
			out = append(out, piece{text: s[last:m[0]]})
		}
		out = append(out, piece{action: &actions[i]})
		last = m[1]
	}
	if last < len(s) {
		out = append(out, piece{text: s[last:]})
	}
	return out
}

// restore puts the original actions back into s, passing literal text through escape.
func restore(s string, actions []action, escape func(string) string) string {
	var b strings.Builder
	for _, p := range split(s, actions) {
		if p.action != nil {
			b.WriteString(p.action.Raw)
			continue
		}
		b.WriteString(escape(p.text))
	}
	return b.String()
}

// hasAction reports whether s contains a placeholder.
func hasAction(s string) bool {
	return placeholderPattern.MatchString(s)
}

// valuePipeline turns the pieces of an attribute value into a single
// pipeline: a lone action is used as is, mixed text goes through printf.
func valuePipeline(pieces []piece) (string, error) {
	var (
		format strings.Builder
		args   []string
	)
	for _, p := range pieces {
		if p.action == nil {
			format.WriteString(strings.ReplaceAll(p.text, "%", "%%"))
			continue
		}
		if p.action.IsControl() || p.action.IsComment() {
			return "", fmt.Errorf("action %s cannot be used as a value", p.action.Raw)
		}
		format.WriteString("%v")
		args = append(args, "("+p.action.Pipeline+")")
	}
	if len(pieces) == 1 && len(args) == 1 {
		return args[0], nil
	}
	return "(printf " + strconv.Quote(format.String()) + " " + strings.Join(args, " ") + ")", nil
}
