package runtime

import (
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

var minifier = newMinifier()

func newMinifier() *minify.M {
	m := minify.New()
	m.Add("text/html", &html.Minifier{
		KeepDefaultAttrVals: true,
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
	})
	return m
}

// minifyHTML returns s minified, or s itself when it cannot be minified.
func minifyHTML(s string) string {
	out, err := minifier.String("text/html", s)
	if err != nil {
		return s
	}
	return out
}
