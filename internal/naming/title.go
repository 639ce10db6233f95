// Package naming turns a rendered page into a safe, unused destination file name.
package naming

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/datallboy/streamgrab/internal/domain"
)

// badChars are stripped from titles before they become file names
var badChars = regexp.MustCompile(`["';:/\\*?<>|]`)

// titleMatcher recognises one element that holds the page title
type titleMatcher struct {
	tag  string
	attr string
	val  string
}

var (
	// canonical heading: <h1 itemprop="name">
	primaryTitle = titleMatcher{tag: "h1", attr: "itemprop", val: "name"}
	// original-language title: <div class="b-post__origtitle">
	fallbackTitle = titleMatcher{tag: "div", attr: "class", val: "b-post__origtitle"}
)

// ExtractTitle finds the human readable title in the rendered markup.
// It tries the canonical heading first, then the original-title block.
func ExtractTitle(markup string) (string, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTitleNotFound, err)
	}

	for _, m := range []titleMatcher{primaryTitle, fallbackTitle} {
		n := findElement(doc, m)
		if n == nil {
			continue
		}

		if title := SanitizeTitle(textContent(n)); title != "" {
			return title, nil
		}
	}

	return "", domain.ErrTitleNotFound
}

// SanitizeTitle removes characters that are unsafe in file names.
func SanitizeTitle(s string) string {
	s = badChars.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

func findElement(n *html.Node, m titleMatcher) *html.Node {
	if n.Type == html.ElementNode && n.Data == m.tag && hasAttr(n, m.attr, m.val) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, m); found != nil {
			return found
		}
	}
	return nil
}

func hasAttr(n *html.Node, key, val string) bool {
	for _, a := range n.Attr {
		if a.Key != key {
			continue
		}
		if key == "class" {
			for _, cls := range strings.Fields(a.Val) {
				if cls == val {
					return true
				}
			}
			return false
		}
		return a.Val == val
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
