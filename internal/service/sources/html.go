package sources

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var brReplacer = strings.NewReplacer(
	"<br>", " ",
	"<br/>", " ",
	"<br />", " ",
	"</p>", " ",
)

// StripHTML flattens an HTML fragment to whitespace-normalized plain
// text. Line breaks become spaces so sentences do not run together.
func StripHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return normalizeSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(brReplacer.Replace(s)))
	if err != nil {
		return normalizeSpace(s)
	}
	return normalizeSpace(doc.Text())
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
