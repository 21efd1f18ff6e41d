package parser

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

// Parse parses an HTML document into a node tree.
func Parse(r io.Reader) (*html.Node, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing page")
	}
	return root, nil
}

// Strategy locates a set of elements in a document tree.
type Strategy interface {
	Name() string
	Find(root *html.Node) ([]*html.Node, error)
}

// CSS returns a Strategy matching a CSS selector.
func CSS(selector string) Strategy {
	return cssStrategy(selector)
}

// XPath returns a Strategy matching an XPath expression.
func XPath(expr string) Strategy {
	return xpathStrategy(expr)
}

type cssStrategy string

func (s cssStrategy) Name() string { return "css:" + string(s) }

func (s cssStrategy) Find(root *html.Node) ([]*html.Node, error) {
	return goquery.NewDocumentFromNode(root).Find(string(s)).Nodes, nil
}

type xpathStrategy string

func (s xpathStrategy) Name() string { return "xpath:" + string(s) }

func (s xpathStrategy) Find(root *html.Node) ([]*html.Node, error) {
	nodes, err := htmlquery.QueryAll(root, string(s))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid xpath %q", string(s))
	}
	return nodes, nil
}

// FirstMatch tries each strategy in order and returns the first non-empty
// result along with the name of the strategy that produced it. A strategy
// that fails counts as an empty result.
func FirstMatch(root *html.Node, strategies ...Strategy) ([]*html.Node, string) {
	for _, s := range strategies {
		nodes, err := s.Find(root)
		if err != nil || len(nodes) == 0 {
			continue
		}
		return nodes, s.Name()
	}
	return nil, ""
}

// ListingStrategies locate story blocks on the listing page, strictest first.
var ListingStrategies = []Strategy{
	CSS("div.fiction-list-item"),
	XPath("//div[contains(@class, 'fiction-list-item')]"),
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
