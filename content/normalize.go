package content

import (
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// WordPress emits site-local timestamps without a zone.
const wpDateLayout = "2006-01-02T15:04:05"

var textPolicy = bluemonday.StrictPolicy()

// plainText strips markup from a WordPress "rendered" field and decodes
// entities such as &#8217;.
func plainText(s string) string {
	s = textPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// firstImage returns the src of the first <img> in body, if any.
func firstImage(body string) string {
	doc, err := nethtml.Parse(strings.NewReader(body))
	if err != nil {
		return ""
	}
	var src string
	var walk func(n *nethtml.Node)
	walk = func(n *nethtml.Node) {
		if src != "" {
			return
		}
		if n.Type == nethtml.ElementNode && n.DataAtom == atom.Img {
			for _, a := range n.Attr {
				if a.Key == "src" && a.Val != "" {
					src = a.Val
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return src
}

func normalize(p wpPost) Article {
	a := Article{
		ID:    p.ID,
		Link:  p.Link,
		Title: plainText(p.Title.Rendered),
	}
	if t, err := time.Parse(wpDateLayout, p.Date); err == nil {
		a.Date = t
	}
	if p.Excerpt != nil {
		a.Excerpt = plainText(p.Excerpt.Rendered)
	}
	if p.Embedded != nil {
		for _, m := range p.Embedded.FeaturedMedia {
			if m.SourceURL != "" {
				a.Image = m.SourceURL
				break
			}
		}
		for _, group := range p.Embedded.Terms {
			for _, term := range group {
				if term.Taxonomy == "category" {
					a.Categories = append(a.Categories, term.Name)
				}
			}
		}
	}
	if a.Image == "" && p.Content != nil {
		a.Image = firstImage(p.Content.Rendered)
	}
	return a
}
