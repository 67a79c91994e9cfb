// browser/dom/document.go
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a parsed snapshot of one frame's DOM. Elements obtained from it are
// borrowed handles that stay valid only as long as the Document is in use.
type Document struct {
	root  *html.Node
	query *goquery.Document

	mu       sync.Mutex
	handles  map[*html.Node]*Element
	ids      map[string]*html.Node
	styles   *StyleEngine
	stylesOK bool
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return NewDocument(root), nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// NewDocument wraps an already parsed tree. The tree is shared, not copied.
func NewDocument(root *html.Node) *Document {
	return &Document{
		root:    root,
		query:   goquery.NewDocumentFromNode(root),
		handles: make(map[*html.Node]*Element),
	}
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Query exposes the goquery view of the document.
func (d *Document) Query() *goquery.Document { return d.query }

// Element returns the handle for an element node, or nil for anything else.
// Repeated calls for the same node return the same handle.
func (d *Document) Element(n *html.Node) *Element {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.handles[n]; ok {
		return el
	}
	el := &Element{doc: d, node: n}
	d.handles[n] = el
	return el
}

// ByID mirrors getElementById: the first element in document order with the given id.
func (d *Document) ByID(id string) *Element {
	if id == "" {
		return nil
	}
	d.mu.Lock()
	if d.ids == nil {
		d.ids = make(map[string]*html.Node)
		d.query.Find("[id]").Each(func(_ int, s *goquery.Selection) {
			v, _ := s.Attr("id")
			if _, seen := d.ids[v]; !seen {
				d.ids[v] = s.Get(0)
			}
		})
	}
	n := d.ids[id]
	d.mu.Unlock()
	return d.Element(n)
}

// Select returns the elements matching a CSS selector, in document order.
func (d *Document) Select(selector string) []*Element {
	var out []*Element
	d.query.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, d.Element(s.Get(0)))
	})
	return out
}

// Styles returns the document's style engine, compiling its stylesheets on first use.
func (d *Document) Styles() *StyleEngine {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.stylesOK {
		d.styles = NewStyleEngine(d.root)
		d.stylesOK = true
	}
	return d.styles
}

// Render serializes the current state of the tree, including any applied mutations.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// HTML is Render into a string.
func (d *Document) HTML() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}
