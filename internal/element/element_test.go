package element

import (
	"context"
	"encoding/json"
	"html/template"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributesOrderAndMerge(t *testing.T) {
	attrs := Attributes{}
	attrs.Set("data-x", "1").
		Set("href", "/home").
		Set("class", "btn").
		Set("ID", "main").
		Set("class", "btn primary").
		Set("style", "color: red;").
		Set("style", "margin: 0")

	assert.Equal(t, []string{"id", "class", "style", "href", "data-x"}, attrs.Names())
	assert.Equal(t, "btn primary", attrs.Get("class"))
	assert.Equal(t, "color: red; margin: 0", attrs.Get("style"))
	assert.Equal(t, ` id="main" class="btn primary" style="color: red; margin: 0" href="/home" data-x="1"`, attrs.String())
}

func TestAttributesBooleanAndEscaping(t *testing.T) {
	attrs := Attributes{"disabled": "", "title": `a "b" <c>`}
	assert.Equal(t, ` disabled title="a &#34;b&#34; &lt;c&gt;"`, attrs.String())
}

func TestAttributesDefaultDeleteClone(t *testing.T) {
	attrs := Attributes{"type": "submit"}
	attrs.Default("type", "button").Default("name", "go")
	assert.Equal(t, "submit", attrs.Get("type"))
	assert.Equal(t, "go", attrs.Get("name"))

	clone := attrs.Clone()
	assert.Equal(t, "submit", clone.Delete("type"))
	assert.True(t, attrs.Has("type"))
	assert.False(t, clone.Has("type"))

	var empty Attributes
	assert.NotNil(t, empty.Clone())
}

func TestElementHTML(t *testing.T) {
	el := New("A").Attr("href", "/x?a=1&b=2").Text("Tom & Jerry")
	assert.Equal(t, `<a href="/x?a=1&amp;b=2">Tom &amp; Jerry</a>`, el.HTML())

	img := New("img").Attr("src", "/i.png").Text("ignored")
	assert.Equal(t, `<img src="/i.png">`, img.HTML())

	nested := New("p").Child(New("b").Text("x")).Raw("<i>y</i>")
	assert.Equal(t, `<p><b>x</b><i>y</i></p>`, nested.HTML())
}

func TestElementComponent(t *testing.T) {
	var b strings.Builder
	require.NoError(t, New("span").Text("hi").Component().Render(context.Background(), &b))
	assert.Equal(t, "<span>hi</span>", b.String())
}

func TestContentBind(t *testing.T) {
	link := &Element{
		Tag:        "a",
		Attributes: Attributes{"class": "link"},
		Bindings:   map[string]int{"href": 1},
		Content:    Content{Expr(2)},
	}
	content := Content{Text("Hello "), Expr(0), Node{Element: link}}
	assert.True(t, content.HasExpression())

	bound, err := content.Bind([]interface{}{"<World>", "/about", template.HTML("<b>About</b>")})
	require.NoError(t, err)

	assert.False(t, bound.HasExpression())
	assert.Equal(t, `Hello &lt;World&gt;<a class="link" href="/about"><b>About</b></a>`, bound.HTML())
	assert.Equal(t, "Hello <World><b>About</b>", bound.Text())
	// the skeleton is left untouched
	assert.NotNil(t, content[1].Expr)
	assert.False(t, link.Attributes.Has("href"))

	_, err = content.Bind([]interface{}{"only one"})
	assert.Error(t, err)
}

func TestBindSanitizesURLAttributes(t *testing.T) {
	link := &Element{
		Tag:      "a",
		Bindings: map[string]int{"href": 0, "title": 1, "data-src": 2},
	}

	bound, err := link.Bind([]interface{}{"javascript:alert(1)", nil, "JaVaScRiPt:x"})
	require.NoError(t, err)
	assert.Equal(t, `<a href="about:invalid#TemplFailedSanitizationURL" data-src="about:invalid#TemplFailedSanitizationURL" title=""></a>`, bound.HTML())

	bound, err = link.Bind([]interface{}{"https://example.com/?q=1", 3, "/img.png"})
	require.NoError(t, err)
	assert.Equal(t, `<a href="https://example.com/?q=1" data-src="/img.png" title="3"></a>`, bound.HTML())
}

func TestBoundValue(t *testing.T) {
	tests := []struct {
		name  string
		attr  string
		value interface{}
		want  string
	}{
		{"nil is empty", "title", nil, ""},
		{"plain text", "title", "javascript:x", "javascript:x"},
		{"unsafe href", "href", "javascript:alert(1)", "about:invalid#TemplFailedSanitizationURL"},
		{"relative href", "href", "/docs#top", "/docs#top"},
		{"mailto", "href", "mailto:a@b.c", "mailto:a@b.c"},
		{"trusted template url", "href", template.URL("javascript:void(0)"), "javascript:void(0)"},
		{"unsafe formaction", "formaction", "vbscript:x", "about:invalid#TemplFailedSanitizationURL"},
		{"name mentioning url", "data-callback-url", "javascript:x", "about:invalid#TemplFailedSanitizationURL"},
		{"number", "width", 12, "12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BoundValue(tt.attr, tt.value))
		})
	}
}

func TestContentJSONRoundTrip(t *testing.T) {
	content := Content{
		Text("Saved"),
		Expr(0),
		{Element: &Element{Tag: "b", Attributes: Attributes{"class": "x"}, Content: Content{Text("y")}}},
	}

	data, err := json.Marshal(content)
	require.NoError(t, err)
	assert.Equal(t, `[{"text":"Saved"},{"expr":0},{"element":{"tag":"b","attributes":{"class":"x"},"content":[{"text":"y"}]}}]`, string(data))

	var decoded Content
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 3)
	require.NotNil(t, decoded[1].Expr)
	assert.Equal(t, 0, *decoded[1].Expr)
	assert.Equal(t, "b", decoded.Elements()[0].Tag)
}

func TestContentIsEmpty(t *testing.T) {
	assert.True(t, Content{Text("  \n ")}.IsEmpty())
	assert.True(t, Content(nil).IsEmpty())
	assert.False(t, Content{Text(" x ")}.IsEmpty())
	assert.False(t, Content{Expr(0)}.IsEmpty())
}

func TestSquishAndSlug(t *testing.T) {
	assert.Equal(t, "a b c", Squish("  a\n\t b   c "))
	assert.Equal(t, "getting-started-with-go", Slug("Getting Started, with Go!"))
	assert.Equal(t, "über-uns", Slug("  Über Uns "))
	assert.Equal(t, "", Slug("!!!"))
}
