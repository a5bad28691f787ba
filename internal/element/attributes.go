package element

import (
	"sort"
	"strings"

	"github.com/a-h/templ"
)

// Attributes is a set of HTML attributes. The map form keeps it
// JSON-friendly; String renders it in a stable order.
type Attributes map[string]string

// priority orders the attributes readers look for first.
var priority = map[string]int{
	"id":    0,
	"class": 1,
	"style": 2,
	"type":  3,
	"name":  4,
	"href":  5,
	"src":   6,
}

// booleanAttributes are rendered without a value when set.
var booleanAttributes = map[string]bool{
	"async": true, "autofocus": true, "checked": true, "defer": true,
	"disabled": true, "hidden": true, "multiple": true, "open": true,
	"readonly": true, "required": true, "selected": true,
}

// Has reports whether name is set.
func (a Attributes) Has(name string) bool {
	_, ok := a[strings.ToLower(name)]
	return ok
}

// Get returns the value of name, or "".
func (a Attributes) Get(name string) string {
	return a[strings.ToLower(name)]
}

// Set replaces the value of name. The class and style attributes are
// merged instead: classes are de-duplicated, style declarations appended.
func (a Attributes) Set(name, value string) Attributes {
	name = strings.ToLower(name)
	switch name {
	case "class":
		a[name] = mergeClasses(a[name], value)
	case "style":
		a[name] = mergeStyles(a[name], value)
	default:
		a[name] = value
	}
	return a
}

// Default sets name only when it is not already present.
func (a Attributes) Default(name, value string) Attributes {
	if !a.Has(name) {
		a[strings.ToLower(name)] = value
	}
	return a
}

// Delete removes name and returns its previous value.
func (a Attributes) Delete(name string) string {
	name = strings.ToLower(name)
	value := a[name]
	delete(a, name)
	return value
}

// Clone returns a copy of a that is never nil.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Merge applies every attribute of other on top of a.
func (a Attributes) Merge(other Attributes) Attributes {
	for _, name := range other.Names() {
		a.Set(name, other[name])
	}
	return a
}

// Names returns attribute names: id, class, style, type, name, href, src
// first, the rest alphabetically.
func (a Attributes) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, iok := priority[names[i]]
		pj, jok := priority[names[j]]
		switch {
		case iok && jok:
			return pi < pj
		case iok:
			return true
		case jok:
			return false
		default:
			return names[i] < names[j]
		}
	})
	return names
}

// String renders the attributes with a leading space, ready to follow a tag name.
func (a Attributes) String() string {
	var b strings.Builder
	for _, name := range a.Names() {
		value := a[name]
		b.WriteByte(' ')
		b.WriteString(templ.EscapeString(name))
		if booleanAttributes[name] && (value == "" || strings.EqualFold(value, name)) {
			continue
		}
		b.WriteString(`="`)
		b.WriteString(templ.EscapeString(value))
		b.WriteByte('"')
	}
	return b.String()
}

func mergeClasses(existing, added string) string {
	seen := make(map[string]bool)
	var out []string
	for _, class := range append(strings.Fields(existing), strings.Fields(added)...) {
		if !seen[class] {
			seen[class] = true
			out = append(out, class)
		}
	}
	return strings.Join(out, " ")
}

func mergeStyles(existing, added string) string {
	existing = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(existing), ";"))
	added = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(added), ";"))
	switch {
	case existing == "":
		return added
	case added == "":
		return existing
	default:
		return existing + "; " + added
	}
}
