package loader

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// mainContentSelectors are tried in order before falling back to <body>.
var mainContentSelectors = []string{
	"main",
	"article",
	".content",
	"#content",
	".documentation",
	"#documentation",
}

// HTMLStrategy converts every text produced by Inner from HTML to its
// visible text.
type HTMLStrategy struct {
	Inner Strategy
}

func (s HTMLStrategy) Parse(data []byte) ([]string, error) {
	inner := s.Inner
	if inner == nil {
		inner = TextStrategy{}
	}

	texts, err := inner.Parse(data)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(texts))
	for _, text := range texts {
		plain, err := htmlToText(text)
		if err != nil {
			return nil, err
		}
		if plain != "" {
			out = append(out, plain)
		}
	}
	return out, nil
}

func htmlToText(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript").Remove()

	var content string
	for _, selector := range mainContentSelectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	// Fallback to body if no main content found
	if content == "" {
		content = doc.Find("body").Text()
	}

	return strings.Join(strings.Fields(content), " "), nil
}
