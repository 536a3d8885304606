package markdown

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// summary holds what can be derived from rendered HTML.
type summary struct {
	Heading string // text of the first h1
	Excerpt string // text of the first paragraph, truncated
	Image   string // src of the first image
}

func summarize(rendered []byte, limit int) (summary, error) {
	root, err := html.Parse(bytes.NewReader(rendered))
	if err != nil {
		return summary{}, err
	}

	var s summary
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.H1:
				if s.Heading == "" {
					s.Heading = text(n)
				}
			case atom.P:
				if s.Excerpt == "" {
					s.Excerpt = truncate(text(n), limit)
				}
			case atom.Img:
				if s.Image == "" {
					s.Image = attr(n, "src")
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return s, nil
}

func text(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// truncate cuts s at a word boundary so it is at most limit runes long,
// appending an ellipsis when anything was removed.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:limit])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}
