// browser/dom/element.go
package dom

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Element is a borrowed handle to one element of a Document.
type Element struct {
	doc  *Document
	node *html.Node
}

// Option is one <option> of a select element.
type Option struct {
	Text     string
	Value    string
	Selected bool
	Disabled bool
}

var knownInputTypes = map[string]bool{
	"text": true, "search": true, "tel": true, "url": true, "email": true, "password": true,
	"date": true, "month": true, "week": true, "time": true, "datetime-local": true,
	"number": true, "range": true, "color": true, "checkbox": true, "radio": true,
	"file": true, "submit": true, "image": true, "reset": true, "button": true, "hidden": true,
}

// Node returns the underlying html node.
func (e *Element) Node() *html.Node { return e.node }

// Document returns the owning document.
func (e *Element) Document() *Document { return e.doc }

// Tag returns the lower-case tag name.
func (e *Element) Tag() string { return strings.ToLower(e.node.Data) }

// Attr returns the attribute value and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or "" when absent.
func (e *Element) AttrOr(name string) string {
	return htmlquery.SelectAttr(e.node, name)
}

// HasAttr reports whether the attribute is present, whatever its value.
func (e *Element) HasAttr(name string) bool {
	_, ok := e.Attr(name)
	return ok
}

func (e *Element) ID() string           { return e.AttrOr("id") }
func (e *Element) Name() string         { return e.AttrOr("name") }
func (e *Element) Placeholder() string  { return e.AttrOr("placeholder") }
func (e *Element) AriaLabel() string    { return e.AttrOr("aria-label") }
func (e *Element) Title() string        { return e.AttrOr("title") }
func (e *Element) AutomationID() string { return e.AttrOr("data-automation-id") }

// InputType follows the DOM "type" property: unknown or missing input types are
// "text", selects report select-one/select-multiple, textareas "textarea", and
// elements without a type property "".
func (e *Element) InputType() string {
	switch e.Tag() {
	case "input":
		t := strings.ToLower(strings.TrimSpace(e.AttrOr("type")))
		if knownInputTypes[t] {
			return t
		}
		return "text"
	case "select":
		if e.HasAttr("multiple") {
			return "select-multiple"
		}
		return "select-one"
	case "textarea":
		return "textarea"
	}
	return ""
}

func isFormControl(tag string) bool {
	switch tag {
	case "input", "select", "textarea", "button", "fieldset", "optgroup", "option":
		return true
	}
	return false
}

// IsDisabled mirrors the "disabled" property, which only form controls carry.
func (e *Element) IsDisabled() bool {
	return isFormControl(e.Tag()) && e.HasAttr("disabled")
}

// IsReadOnly mirrors the "readOnly" property of inputs and textareas.
func (e *Element) IsReadOnly() bool {
	switch e.Tag() {
	case "input", "textarea":
		return e.HasAttr("readonly")
	}
	return false
}

// IsContentEditable reports an explicit contenteditable host.
func (e *Element) IsContentEditable() bool {
	v, ok := e.Attr("contenteditable")
	if !ok {
		return false
	}
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "" || v == "true" || v == "plaintext-only"
}

// TextContent returns the raw concatenated text of all descendants.
func (e *Element) TextContent() string {
	return htmlquery.InnerText(e.node)
}

// Text returns the text content trimmed and with internal whitespace collapsed.
func (e *Element) Text() string {
	return CollapseSpace(e.TextContent())
}

// Value mirrors the DOM "value" property for the element kinds the engine fills.
func (e *Element) Value() string {
	switch e.Tag() {
	case "input":
		v, ok := e.Attr("value")
		if !ok {
			if t := e.InputType(); t == "checkbox" || t == "radio" {
				return "on"
			}
		}
		return v
	case "textarea":
		return e.TextContent()
	case "select":
		opts := e.Options()
		if i := e.SelectedIndex(); i >= 0 {
			return opts[i].Value
		}
		return ""
	}
	if e.IsContentEditable() {
		return e.TextContent()
	}
	return e.AttrOr("value")
}

// Checked mirrors the "checked" property of checkboxes and radios.
func (e *Element) Checked() bool {
	return e.Tag() == "input" && e.HasAttr("checked")
}

func (e *Element) optionNodes() []*html.Node {
	return htmlquery.Find(e.node, ".//option")
}

// Options lists the select's options in order, optgroups flattened.
func (e *Element) Options() []Option {
	nodes := e.optionNodes()
	opts := make([]Option, 0, len(nodes))
	for _, n := range nodes {
		opt := e.doc.Element(n)
		text := opt.Text()
		value, ok := opt.Attr("value")
		if !ok {
			value = text
		}
		disabled := opt.HasAttr("disabled")
		if p := n.Parent; !disabled && p != nil && p.Type == html.ElementNode && strings.EqualFold(p.Data, "optgroup") {
			disabled = e.doc.Element(p).HasAttr("disabled")
		}
		opts = append(opts, Option{Text: text, Value: value, Selected: opt.HasAttr("selected"), Disabled: disabled})
	}
	if i := e.SelectedIndex(); i >= 0 && !e.HasAttr("multiple") {
		for j := range opts {
			opts[j].Selected = j == i
		}
	}
	return opts
}

// SelectedIndex follows select-one rules: the last option marked selected, otherwise
// the first enabled option, otherwise -1.
func (e *Element) SelectedIndex() int {
	nodes := e.optionNodes()
	idx := -1
	for i, n := range nodes {
		if e.doc.Element(n).HasAttr("selected") {
			idx = i
			if e.HasAttr("multiple") {
				return idx
			}
		}
	}
	if idx >= 0 || e.HasAttr("multiple") {
		return idx
	}
	for i, n := range nodes {
		if !e.doc.Element(n).HasAttr("disabled") {
			return i
		}
	}
	return -1
}

// Parent returns the parent element, or nil at the top of the tree.
func (e *Element) Parent() *Element {
	for p := e.node.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return e.doc.Element(p)
		}
		if p.Type == html.DocumentNode {
			return nil
		}
	}
	return nil
}

// PreviousElementSibling skips text and comment nodes.
func (e *Element) PreviousElementSibling() *Element {
	for s := e.node.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return e.doc.Element(s)
		}
	}
	return nil
}

// Closest returns the nearest inclusive ancestor with the given tag.
func (e *Element) Closest(tag string) *Element {
	for n := e.node; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
			return e.doc.Element(n)
		}
	}
	return nil
}

// Locator returns a unique XPath for the element.
func (e *Element) Locator() string {
	return Locator(e.doc, e.node)
}

// -- Tree mutations. These change the snapshot only; page side effects belong to an Actuator. --

// SetAttr sets or replaces an attribute.
func (e *Element) SetAttr(name, value string) {
	for i, a := range e.node.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr deletes an attribute if present.
func (e *Element) RemoveAttr(name string) {
	attrs := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			continue
		}
		attrs = append(attrs, a)
	}
	e.node.Attr = attrs
}

func (e *Element) replaceText(text string) {
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
	if text != "" {
		e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

// ApplyValue records a new value in the tree the way it would serialize.
func (e *Element) ApplyValue(value string) {
	switch {
	case e.Tag() == "textarea", e.Tag() != "input" && e.IsContentEditable():
		e.replaceText(value)
	default:
		e.SetAttr("value", value)
	}
}

// ApplySelected marks option index i as the only selected option.
func (e *Element) ApplySelected(i int) bool {
	nodes := e.optionNodes()
	if i < 0 || i >= len(nodes) {
		return false
	}
	for j, n := range nodes {
		opt := e.doc.Element(n)
		if j == i {
			opt.SetAttr("selected", "")
		} else {
			opt.RemoveAttr("selected")
		}
	}
	return true
}

// ApplyChecked sets the checked state. Checking a radio unchecks the rest of its group.
func (e *Element) ApplyChecked(checked bool) {
	if !checked {
		e.RemoveAttr("checked")
		return
	}
	e.SetAttr("checked", "")
	if e.InputType() != "radio" || e.Name() == "" {
		return
	}
	scope := e.Closest("form")
	var root *html.Node
	if scope != nil {
		root = scope.node
	} else {
		root = e.doc.root
	}
	for _, n := range htmlquery.Find(root, ".//input") {
		if n == e.node {
			continue
		}
		other := e.doc.Element(n)
		if other.InputType() == "radio" && other.Name() == e.Name() && other.Closest("form") == scope {
			other.RemoveAttr("checked")
		}
	}
}

// CollapseSpace trims s and folds every run of whitespace into one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
