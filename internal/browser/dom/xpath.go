// browser/dom/xpath.go
package dom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Locator generates an XPath for node. An id is used as the anchor only when it is
// unique within doc; otherwise the path is built from positional steps.
func Locator(doc *Document, node *html.Node) string {
	if node == nil {
		return ""
	}

	var path []string
	anchored := false
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(n.Data)
		if tag == "" {
			continue
		}

		if id := htmlquery.SelectAttr(n, "id"); id != "" {
			anchor := fmt.Sprintf("//*[@id=%s]", xpathLiteral(id))
			if doc == nil || len(htmlquery.Find(doc.Root(), anchor)) == 1 {
				path = append(path, anchor)
				anchored = true
				break
			}
		}

		// XPath indices are 1-based.
		index := 1
		for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
				index++
			}
		}
		path = append(path, fmt.Sprintf("%s[%d]", tag, index))
	}

	if len(path) == 0 {
		return "/"
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	xpath := strings.Join(path, "/")
	if !anchored {
		xpath = "/" + xpath
	}
	return xpath
}

// Resolve finds the single element addressed by a locator.
func (d *Document) Resolve(locator string) (*Element, error) {
	nodes, err := htmlquery.QueryAll(d.root, locator)
	if err != nil {
		return nil, fmt.Errorf("invalid locator %q: %w", locator, err)
	}
	if len(nodes) != 1 {
		return nil, fmt.Errorf("locator %q matched %d elements", locator, len(nodes))
	}
	return d.Element(nodes[0]), nil
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}
