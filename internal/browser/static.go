package browser

import (
	"context"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// ParseHTML parses a saved page into a Node rooted at the document. Queries
// run against the static markup; nothing is executed.
func ParseHTML(r io.Reader) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "browser: parse html")
	}
	return &staticNode{sel: doc.Selection}, nil
}

// ParseHTMLString is ParseHTML over a string.
func ParseHTMLString(html string) (Node, error) {
	return ParseHTML(strings.NewReader(html))
}

type staticNode struct {
	sel *goquery.Selection
}

func (n *staticNode) Locator(selector string) Node {
	return &staticNode{sel: n.sel.Find(selector)}
}

func (n *staticNode) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return n.sel.Length(), nil
}

func (n *staticNode) Nth(i int) Node {
	return &staticNode{sel: n.sel.Eq(i)}
}

func (n *staticNode) TextContent(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if n.sel.Length() == 0 {
		return "", false, nil
	}
	return n.sel.First().Text(), true, nil
}
