package runtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/conneroisu/uikit/internal/element"
	uierrors "github.com/conneroisu/uikit/internal/errors"
)

// Arguments are what a component receives for one invocation.
type Arguments struct {
	// Tag is the element name the component was invoked with, e.g. "h2".
	Tag string `json:"tag,omitempty"`
	// Attributes are the static attributes of the tag.
	Attributes element.Attributes `json:"attributes,omitempty"`
	// Variables hold the values of attributes bound to template actions.
	Variables map[string]interface{} `json:"variables,omitempty"`
	// Content is the parsed tag body.
	Content element.Content `json:"content,omitempty"`
}

// Lookup returns the variable name, falling back to the static attribute.
func (a Arguments) Lookup(name string) (interface{}, bool) {
	name = strings.ToLower(name)
	if v, ok := a.Variables[name]; ok {
		return v, true
	}
	if a.Attributes.Has(name) {
		return a.Attributes.Get(name), true
	}
	return nil, false
}

// String returns the named argument formatted as a string, or def.
func (a Arguments) String(name, def string) string {
	v, ok := a.Lookup(name)
	if !ok || v == nil {
		return def
	}
	return fmt.Sprint(v)
}

// Bool interprets the named argument. A bare attribute counts as true.
func (a Arguments) Bool(name string) bool {
	v, ok := a.Lookup(name)
	if !ok {
		return false
	}
	switch v := v.(type) {
	case bool:
		return v
	case string:
		if v == "" {
			return true
		}
		b, err := strconv.ParseBool(v)
		return err == nil && b
	default:
		return v != nil
	}
}

// Passthrough returns the static attributes minus the names the component consumes.
func (a Arguments) Passthrough(consumed ...string) element.Attributes {
	out := a.Attributes.Clone()
	for _, name := range consumed {
		out.Delete(name)
	}
	return out
}

// HTMLAttributes is Passthrough plus the bound variables formatted as
// attribute values. A false or nil variable drops the attribute and true
// sets it bare. URL attributes are sanitized as element.BoundValue does.
func (a Arguments) HTMLAttributes(consumed ...string) element.Attributes {
	out := a.Passthrough(consumed...)
	skip := make(map[string]bool, len(consumed))
	for _, name := range consumed {
		skip[strings.ToLower(name)] = true
	}
	for name, v := range a.Variables {
		if skip[name] {
			continue
		}
		switch v := v.(type) {
		case nil:
			out.Delete(name)
		case bool:
			if v {
				out[name] = ""
			} else {
				out.Delete(name)
			}
		default:
			out.Set(name, element.BoundValue(name, v))
		}
	}
	return out
}

// Skeleton is the compile-time form of Arguments: dynamic values are
// positions into the value list supplied by the template at render time.
type Skeleton struct {
	Tag        string             `json:"tag,omitempty"`
	Attributes element.Attributes `json:"attributes,omitempty"`
	Variables  map[string]int     `json:"variables,omitempty"`
	Content    element.Content    `json:"content,omitempty"`
}

// ParseSkeleton decodes a skeleton produced by Encode.
func ParseSkeleton(s string) (Skeleton, error) {
	var sk Skeleton
	if strings.TrimSpace(s) == "" {
		return sk, nil
	}
	if err := json.Unmarshal([]byte(s), &sk); err != nil {
		return sk, uierrors.NewRenderError(uierrors.CodeInvalidArguments, "malformed argument skeleton", err)
	}
	return sk, nil
}

// Encode serializes the skeleton so it can sit inside a template raw string.
func (s Skeleton) Encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(string(data), "`", "\\u0060"), nil
}

// IsStatic reports whether the skeleton needs no render-time values.
func (s Skeleton) IsStatic() bool {
	return len(s.Variables) == 0 && !s.Content.HasExpression()
}

// Bind fills the skeleton with values.
func (s Skeleton) Bind(values []interface{}) (Arguments, error) {
	args := Arguments{
		Tag:        s.Tag,
		Attributes: s.Attributes.Clone(),
	}
	if len(s.Variables) > 0 {
		args.Variables = make(map[string]interface{}, len(s.Variables))
		for name, pos := range s.Variables {
			if pos < 0 || pos >= len(values) {
				return args, uierrors.NewRenderError(uierrors.CodeInvalidArguments,
					fmt.Sprintf("variable %s refers to value %d of %d", name, pos, len(values)), nil)
			}
			args.Variables[name] = values[pos]
		}
	}
	content, err := s.Content.Bind(values)
	if err != nil {
		return args, uierrors.NewRenderError(uierrors.CodeInvalidArguments, "cannot bind content", err)
	}
	args.Content = content
	return args, nil
}
