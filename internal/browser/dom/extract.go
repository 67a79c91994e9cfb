// browser/dom/extract.go
package dom

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// CandidateSelector matches every element the autofill scan considers.
const CandidateSelector = `input:not([type="hidden"]):not([type="submit"]):not([type="button"]), select, textarea, [role="combobox"], [role="textbox"]`

// Annotation attributes written into live snapshots by the browser session.
const (
	// MarkerAttr carries a per-snapshot element id used to address the live node.
	MarkerAttr = "data-formpilot-id"
	// VisibleAttr carries the browser's own layout verdict ("true"/"false").
	VisibleAttr = "data-formpilot-visible"
)

// maxSiblingCaptionRunes bounds the text of a non-label sibling treated as a caption.
const maxSiblingCaptionRunes = 100

// Candidates returns the scan candidates of a document in document order.
func Candidates(doc *Document) []*Element {
	var out []*Element
	doc.Query().Find(CandidateSelector).Each(func(_ int, s *goquery.Selection) {
		el := doc.Element(s.Get(0))
		if el == nil {
			return
		}
		// Attribute selectors are case-sensitive in the matcher, the type attribute is not.
		if el.Tag() == "input" {
			switch el.InputType() {
			case "hidden", "submit", "button":
				return
			}
		}
		out = append(out, el)
	})
	return out
}

// IsVisible reports whether the element takes part in layout and is not hidden by
// visibility or display. A browser verdict stored in VisibleAttr wins over the
// static computation.
func IsVisible(el *Element) bool {
	if el == nil {
		return false
	}
	if v, ok := el.Attr(VisibleAttr); ok {
		return v == "true"
	}
	styles := el.Document().Styles()
	n := el.Node()
	if !styles.HasLayoutParent(n) {
		return false
	}
	switch styles.Visibility(n) {
	case "hidden", "collapse":
		return false
	}
	return styles.Display(n) != "none"
}

// IsFillable reports whether the scan should keep the element.
func IsFillable(el *Element) bool {
	return IsVisible(el) && !el.IsDisabled() && !el.IsReadOnly()
}

// ExtractLabel finds the caption of a field. The first source found wins, even if
// its text is empty: an explicit <label for>, the wrapping <label>, the elements
// named by aria-labelledby, then the previous sibling of the parent container when
// it is a <label> or carries short text.
func ExtractLabel(el *Element) string {
	if el == nil {
		return ""
	}
	doc := el.Document()

	if id := el.ID(); id != "" {
		var found *Element
		doc.Query().Find("label[for]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, _ := s.Attr("for"); v == id {
				found = doc.Element(s.Get(0))
				return false
			}
			return true
		})
		if found != nil {
			return found.Text()
		}
	}

	if lbl := el.Closest("label"); lbl != nil {
		return lbl.Text()
	}

	if ids := strings.Fields(el.AttrOr("aria-labelledby")); len(ids) > 0 {
		var (
			parts  []string
			exists bool
		)
		for _, id := range ids {
			if ref := doc.ByID(id); ref != nil {
				exists = true
				if t := ref.Text(); t != "" {
					parts = append(parts, t)
				}
			}
		}
		if exists {
			return strings.Join(parts, " ")
		}
	}

	if container := el.Parent(); container != nil {
		if prev := container.PreviousElementSibling(); prev != nil {
			if prev.Tag() == "label" || utf8.RuneCountInString(prev.TextContent()) < maxSiblingCaptionRunes {
				return prev.Text()
			}
		}
	}
	return ""
}

// ExtractContext joins every textual hint of a field: label, name, id, placeholder,
// aria-label, data-automation-id and title.
func ExtractContext(el *Element) string {
	if el == nil {
		return ""
	}
	parts := []string{
		ExtractLabel(el),
		el.Name(),
		el.ID(),
		el.Placeholder(),
		el.AriaLabel(),
		el.AutomationID(),
		el.Title(),
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
